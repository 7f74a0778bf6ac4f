// Package ocr extracts registration identifiers from scanned admit cards.
//
// Recognition is best-effort by nature; the pipeline treats every extracted
// identifier as advisory and verifies it against the candidate registry
// before anything is persisted.
package ocr

import "context"

// ProgressFunc receives incremental recognition progress (0.0 to 1.0). It is
// an observability signal for UI display and must not influence the result.
type ProgressFunc func(status string, progress float64)

// Input encapsulates one image submitted for recognition.
type Input struct {
	// Image is the encoded image payload (PNG/JPEG).
	Image []byte
	// Languages is a list of trained-data hints (e.g. "eng").
	Languages []string
	// Progress, when non-nil, is invoked as recognition advances.
	Progress ProgressFunc
}

// Result carries the recognized text for one input.
type Result struct {
	// PlainText contains the linearized text extracted from the image.
	PlainText string
	// Confidence is the mean word confidence in [0,1], when the engine
	// reports one; zero means unknown.
	Confidence float64
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}
