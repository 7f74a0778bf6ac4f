package omr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"

	httpclient "examflow-workers/internal/common/http"
	"examflow-workers/internal/common/logger"
)

var (
	ErrDecodeUnavailable = errors.New("DECODE_UNAVAILABLE")
	ErrDecodeRejected    = errors.New("DECODE_REJECTED")
)

// responseSchema guards against the decoder service drifting its contract.
// Identity fields are optional, the answers map is not.
var responseSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"answers"},
	"properties": map[string]interface{}{
		"name":          map[string]interface{}{"type": []interface{}{"string", "null"}},
		"roll_number":   map[string]interface{}{"type": []interface{}{"string", "null"}},
		"version":       map[string]interface{}{"type": []interface{}{"string", "null"}},
		"answer_string": map[string]interface{}{"type": []interface{}{"string", "null"}},
		"answers": map[string]interface{}{
			"type": "object",
			"patternProperties": map[string]interface{}{
				"^[Qq][0-9]+$": map[string]interface{}{
					"type":    []interface{}{"string", "null"},
					"pattern": "^[A-Da-d]?$",
				},
			},
		},
	},
}

// Client calls the external OMR decoder service. The service does the image
// processing; this client only uploads the sheet and validates the reading.
type Client struct {
	baseURL    string
	httpClient *httpclient.Client
	logger     logger.Logger
}

// NewClient builds a decoder client. Sheet processing is slow on the service
// side, timeouts below a minute are raised to a minute.
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if timeout < 60*time.Second {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpclient.NewClient(timeout),
		logger:     log.WithFields(map[string]interface{}{"component": "omr-client"}),
	}
}

// Decode uploads one OMR sheet image and returns the normalized reading.
// Transport failures and 5xx responses map to ErrDecodeUnavailable so the
// caller can retry; 4xx responses map to ErrDecodeRejected and carry the
// service's response body as the failure detail.
func (c *Client) Decode(ctx context.Context, fileName string, sheet []byte) (*DecodedAnswerSet, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(sheet); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/process-omr", &body)
	if err != nil {
		return nil, fmt.Errorf("build decode request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrDecodeUnavailable, err)
	}

	c.logger.Debug("decoder responded", map[string]interface{}{
		"status":     resp.StatusCode,
		"durationMs": time.Since(start).Milliseconds(),
		"file":       fileName,
	})

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: decoder returned %d: %s", ErrDecodeUnavailable, resp.StatusCode, truncate(payload, 512))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: decoder returned %d: %s", ErrDecodeRejected, resp.StatusCode, truncate(payload, 512))
	}

	if err := c.validateResponse(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeRejected, err)
	}

	var decoded DecodedAnswerSet
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrDecodeRejected, err)
	}
	if err := decoded.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeRejected, err)
	}
	if decoded.AnswerString == "" {
		return nil, fmt.Errorf("%w: decoder returned no answers", ErrDecodeRejected)
	}
	if decoded.ReportedAnswerString != "" && decoded.ReportedAnswerString != decoded.AnswerString {
		return nil, fmt.Errorf("%w: answer_string %q disagrees with answers map (%q)",
			ErrDecodeRejected, decoded.ReportedAnswerString, decoded.AnswerString)
	}
	return &decoded, nil
}

func (c *Client) validateResponse(payload []byte) error {
	schemaLoader := gojsonschema.NewGoLoader(responseSchema)
	documentLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("response validation failed: %v", errs)
	}
	return nil
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
