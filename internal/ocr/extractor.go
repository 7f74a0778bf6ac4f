package ocr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"examflow-workers/internal/common/logger"
)

var ErrExtractionFailed = errors.New("EXTRACTION_FAILED")

// digitRun matches any run of at least 10 consecutive digits, the fallback
// when the prefixed pattern is not legible on the scan.
var digitRun = regexp.MustCompile(`\d{10,}`)

// Extractor pulls a registration identifier out of admit-card text.
type Extractor struct {
	engine   Engine
	prefix   string
	language string
	pattern  *regexp.Regexp
	logger   logger.Logger
}

// NewExtractor builds an extractor for identifiers of the form
// <prefix><digits>, e.g. XYZ1733750400123.
func NewExtractor(engine Engine, prefix, language string, log logger.Logger) *Extractor {
	prefix = strings.ToUpper(prefix)
	return &Extractor{
		engine:   engine,
		prefix:   prefix,
		language: language,
		pattern:  regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix) + `\d+`),
		logger:   log.WithFields(map[string]interface{}{"component": "identifier-extractor"}),
	}
}

// ExtractIdentifier runs OCR over the image and applies, in order: the
// prefixed pattern (normalized to uppercase), then a >=10 digit run with the
// prefix synthesized. ErrExtractionFailed when neither matches.
func (e *Extractor) ExtractIdentifier(ctx context.Context, image []byte, progress ProgressFunc) (string, error) {
	res, err := e.engine.Recognize(ctx, Input{
		Image:     image,
		Languages: []string{e.language},
		Progress:  progress,
	})
	if err != nil {
		return "", fmt.Errorf("%w: ocr: %v", ErrExtractionFailed, err)
	}

	id, err := e.FromText(res.PlainText)
	if err != nil {
		return "", err
	}

	e.logger.Debug("identifier extracted", map[string]interface{}{
		"identifier": id,
		"confidence": res.Confidence,
	})
	return id, nil
}

// FromText applies the matching rules to already-recognized text. Split out
// so the pattern logic is testable without an OCR engine.
func (e *Extractor) FromText(text string) (string, error) {
	if m := e.pattern.FindString(text); m != "" {
		return strings.ToUpper(m), nil
	}
	if m := digitRun.FindString(text); m != "" {
		return e.prefix + m, nil
	}
	return "", fmt.Errorf("%w: no registration number pattern in recognized text", ErrExtractionFailed)
}
