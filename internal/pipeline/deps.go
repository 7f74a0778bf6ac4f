// internal/pipeline/deps.go
package pipeline

import (
	"context"
	"time"

	"examflow-workers/internal/ocr"
	"examflow-workers/internal/omr"
	"examflow-workers/internal/registry"
)

// The flows depend on narrow interfaces so tests can swap in fakes and the
// stores stay free of orchestration concerns.

type SheetDecoder interface {
	Decode(ctx context.Context, fileName string, sheet []byte) (*omr.DecodedAnswerSet, error)
}

// SheetDeduper guards against the same sheet image being processed twice.
// A nil deduper disables the guard.
type SheetDeduper interface {
	Reserve(ctx context.Context, digest string) error
	Release(ctx context.Context, digest string)
}

type IdentifierExtractor interface {
	ExtractIdentifier(ctx context.Context, image []byte, progress ocr.ProgressFunc) (string, error)
}

type CandidateFinder interface {
	FindByRegistration(ctx context.Context, registrationNumber string) (*registry.CandidateRecord, error)
}

type ExamResultStore interface {
	FindByRegistration(ctx context.Context, registrationNumber string) (*registry.ExamResultRecord, error)
	Create(ctx context.Context, rec *registry.ExamResultRecord) error
}

type AnswerKeyFinder interface {
	FindActive(ctx context.Context, examName string) (*registry.AnswerKeyRecord, error)
}

type FinalResultCreator interface {
	Create(ctx context.Context, rec *registry.FinalResultRecord) error
}

// AuditRecorder receives flow outcomes. Implementations must be best effort.
type AuditRecorder interface {
	RecordCompletion(ctx context.Context, flow, registrationNumber string, duration time.Duration)
	RecordFailure(ctx context.Context, flow, registrationNumber, stage, errorCode string, err error, duration time.Duration)
}

// ResultPublisher is notified after a final result lands.
type ResultPublisher interface {
	ResultPublished(ctx context.Context, candidate *registry.CandidateRecord, result *registry.FinalResultRecord)
}
