package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine implements Engine using the gosseract client. A fresh
// client is created per call; gosseract clients are not safe for concurrent
// reuse.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
	tessData      string
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine. tessData may
// be empty to use the system default trained-data location.
func NewTesseractEngine(tessData string) *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient, tessData: tessData}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize performs OCR on a single image. Tesseract's C API exposes no
// incremental progress hook through gosseract, so progress is reported at
// the start and end of recognition only.
func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if e.tessData != "" {
		if err := c.SetTessdataPrefix(e.tessData); err != nil {
			return Result{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return Result{}, fmt.Errorf("set languages: %w", err)
		}
	}

	if in.Progress != nil {
		in.Progress("recognizing text", 0)
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	conf := wordConfidence(c)

	if in.Progress != nil {
		in.Progress("recognizing text", 1)
	}

	return Result{PlainText: text, Confidence: conf}, nil
}

func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
