// internal/workers/results/secure-result/config.go
package secureresult

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// OCR plus a round trip to the decoder service; generous on purpose.
		Timeout: 120 * time.Second,
	}
}
