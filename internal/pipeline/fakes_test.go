// internal/pipeline/fakes_test.go
package pipeline

import (
	"context"
	"time"

	"examflow-workers/internal/ocr"
	"examflow-workers/internal/omr"
	"examflow-workers/internal/registry"
)

type fakeDecoder struct {
	decoded *omr.DecodedAnswerSet
	err     error
	calls   int
}

func (f *fakeDecoder) Decode(ctx context.Context, fileName string, sheet []byte) (*omr.DecodedAnswerSet, error) {
	f.calls++
	return f.decoded, f.err
}

type fakeDeduper struct {
	reserved map[string]bool
	err      error
}

func (f *fakeDeduper) Reserve(ctx context.Context, digest string) error {
	if f.err != nil {
		return f.err
	}
	if f.reserved[digest] {
		return omr.ErrDuplicateSheet
	}
	f.reserved[digest] = true
	return nil
}

func (f *fakeDeduper) Release(ctx context.Context, digest string) {
	delete(f.reserved, digest)
}

type fakeExtractor struct {
	regNumber string
	err       error
}

func (f *fakeExtractor) ExtractIdentifier(ctx context.Context, image []byte, progress ocr.ProgressFunc) (string, error) {
	if progress != nil {
		progress("recognizing text", 1)
	}
	return f.regNumber, f.err
}

type fakeCandidates struct {
	records map[string]*registry.CandidateRecord
}

func (f *fakeCandidates) FindByRegistration(ctx context.Context, regNumber string) (*registry.CandidateRecord, error) {
	if rec, ok := f.records[regNumber]; ok {
		return rec, nil
	}
	return nil, registry.ErrCandidateNotFound
}

type fakeExamResults struct {
	records map[string]*registry.ExamResultRecord
	created []*registry.ExamResultRecord
}

func newFakeExamResults() *fakeExamResults {
	return &fakeExamResults{records: map[string]*registry.ExamResultRecord{}}
}

func (f *fakeExamResults) FindByRegistration(ctx context.Context, regNumber string) (*registry.ExamResultRecord, error) {
	if rec, ok := f.records[regNumber]; ok {
		return rec, nil
	}
	return nil, registry.ErrExamResultNotFound
}

func (f *fakeExamResults) Create(ctx context.Context, rec *registry.ExamResultRecord) error {
	if _, ok := f.records[rec.RegistrationNumber]; ok {
		return registry.ErrDuplicateExamResult
	}
	rec.ID = "exam-" + rec.RegistrationNumber
	f.records[rec.RegistrationNumber] = rec
	f.created = append(f.created, rec)
	return nil
}

type fakeAnswerKeys struct {
	key      *registry.AnswerKeyRecord
	err      error
	examName string
}

func (f *fakeAnswerKeys) FindActive(ctx context.Context, examName string) (*registry.AnswerKeyRecord, error) {
	f.examName = examName
	return f.key, f.err
}

type fakeFinalResults struct {
	created []*registry.FinalResultRecord
	err     error
}

func (f *fakeFinalResults) Create(ctx context.Context, rec *registry.FinalResultRecord) error {
	if f.err != nil {
		return f.err
	}
	rec.ID = "final-" + rec.RegistrationNumber
	f.created = append(f.created, rec)
	return nil
}

type auditCall struct {
	flow      string
	regNumber string
	stage     string
	errorCode string
	outcome   string
}

type fakeAudit struct {
	calls []auditCall
}

func (f *fakeAudit) RecordCompletion(ctx context.Context, flow, regNumber string, duration time.Duration) {
	f.calls = append(f.calls, auditCall{flow: flow, regNumber: regNumber, outcome: "completed"})
}

func (f *fakeAudit) RecordFailure(ctx context.Context, flow, regNumber, stage, errorCode string, err error, duration time.Duration) {
	f.calls = append(f.calls, auditCall{flow: flow, regNumber: regNumber, stage: stage, errorCode: errorCode, outcome: "failed"})
}

type fakePublisher struct {
	published []*registry.FinalResultRecord
}

func (f *fakePublisher) ResultPublished(ctx context.Context, candidate *registry.CandidateRecord, result *registry.FinalResultRecord) {
	f.published = append(f.published, result)
}
