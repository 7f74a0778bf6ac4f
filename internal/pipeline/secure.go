// internal/pipeline/secure.go
package pipeline

import (
	"context"
	"errors"
	"time"

	"examflow-workers/internal/common/logger"
	"examflow-workers/internal/common/metrics"
	"examflow-workers/internal/integrity"
	"examflow-workers/internal/omr"
	"examflow-workers/internal/registry"
)

const FlowSecureResult = "secure-result"

// SecureInput carries the two scans needed to secure a candidate's response.
type SecureInput struct {
	AdmitCardImage []byte
	OMRSheetImage  []byte
	OMRFileName    string
}

// SecureOutput is what the flow reports back to the process instance.
type SecureOutput struct {
	RegistrationNumber string  `json:"registrationNumber"`
	CandidateID        string  `json:"candidateId"`
	ExamResultID       string  `json:"examResultId"`
	AnswerStringHash   string  `json:"answerStringHash"`
	TotalQuestions     int     `json:"totalQuestions"`
	AnsweredQuestions  int     `json:"answeredQuestions"`
	Status             string  `json:"status"`
	OCRConfidence      float64 `json:"-"`
}

// SecureResultFlow decodes an OMR sheet, ties it to a registered candidate
// and freezes the response with its digest. Nothing touches the database
// until the final persist, so a failed run leaves no partial state behind.
type SecureResultFlow struct {
	decoder     SheetDecoder
	dedup       SheetDeduper
	extractor   IdentifierExtractor
	candidates  CandidateFinder
	examResults ExamResultStore
	audit       AuditRecorder
	logger      logger.Logger
}

func NewSecureResultFlow(
	decoder SheetDecoder,
	dedup SheetDeduper,
	extractor IdentifierExtractor,
	candidates CandidateFinder,
	examResults ExamResultStore,
	audit AuditRecorder,
	log logger.Logger,
) *SecureResultFlow {
	return &SecureResultFlow{
		decoder:     decoder,
		dedup:       dedup,
		extractor:   extractor,
		candidates:  candidates,
		examResults: examResults,
		audit:       audit,
		logger:      log.WithFields(map[string]interface{}{"flow": FlowSecureResult}),
	}
}

// state threads intermediate values between transitions.
type secureState struct {
	stage       Stage
	input       *SecureInput
	sheetDigest string
	decoded     *omr.DecodedAnswerSet
	regNumber   string
	digest      string
	candidate   *registry.CandidateRecord
	examResult  *registry.ExamResultRecord
}

// Run drives the flow: DecodingOMR, ExtractingIdentifier, Hashing,
// ResolvingCandidate, Persisting, Done. The first failing transition aborts.
func (f *SecureResultFlow) Run(ctx context.Context, input *SecureInput) (*SecureOutput, error) {
	start := time.Now()
	st := &secureState{stage: StageDecodingOMR, input: input}

	transitions := []func(context.Context, *secureState) error{
		f.decodeOMR,
		f.extractIdentifier,
		f.hashAnswers,
		f.resolveCandidate,
		f.persist,
	}

	for _, transition := range transitions {
		stageStart := time.Now()
		err := transition(ctx, st)
		metrics.StageDuration.WithLabelValues(FlowSecureResult, string(st.stage)).
			Observe(time.Since(stageStart).Seconds())
		if err != nil {
			f.releaseSheet(ctx, st, err)
			stageErr := failAt(st.stage, err)
			code := string(Classify(st.regNumber, stageErr).Code)
			metrics.FlowsFailed.WithLabelValues(FlowSecureResult, string(st.stage), code).Inc()
			f.audit.RecordFailure(ctx, FlowSecureResult, st.regNumber, string(st.stage),
				code, err, time.Since(start))
			return nil, stageErr
		}
	}
	st.stage = StageDone

	metrics.FlowsCompleted.WithLabelValues(FlowSecureResult).Inc()
	metrics.FlowDuration.WithLabelValues(FlowSecureResult).Observe(time.Since(start).Seconds())
	f.audit.RecordCompletion(ctx, FlowSecureResult, st.regNumber, time.Since(start))

	return &SecureOutput{
		RegistrationNumber: st.examResult.RegistrationNumber,
		CandidateID:        st.examResult.CandidateID,
		ExamResultID:       st.examResult.ID,
		AnswerStringHash:   st.examResult.AnswerStringHash,
		TotalQuestions:     st.examResult.TotalQuestions,
		AnsweredQuestions:  st.examResult.AnsweredQuestions,
		Status:             st.examResult.Status,
	}, nil
}

func (f *SecureResultFlow) decodeOMR(ctx context.Context, st *secureState) error {
	st.stage = StageDecodingOMR
	if f.dedup != nil {
		sheetDigest := integrity.Digest(string(st.input.OMRSheetImage))
		if err := f.dedup.Reserve(ctx, sheetDigest); err != nil {
			return err
		}
		st.sheetDigest = sheetDigest
	}
	decoded, err := f.decoder.Decode(ctx, st.input.OMRFileName, st.input.OMRSheetImage)
	if err != nil {
		return err
	}
	st.decoded = decoded
	return nil
}

// releaseSheet frees the dedup reservation when a run fails after claiming
// it, so retrying the same sheet is not mistaken for a duplicate.
func (f *SecureResultFlow) releaseSheet(ctx context.Context, st *secureState, err error) {
	if f.dedup == nil || st.sheetDigest == "" || errors.Is(err, omr.ErrDuplicateSheet) {
		return
	}
	f.dedup.Release(ctx, st.sheetDigest)
}

func (f *SecureResultFlow) extractIdentifier(ctx context.Context, st *secureState) error {
	st.stage = StageExtractingIdentifier
	regNumber, err := f.extractor.ExtractIdentifier(ctx, st.input.AdmitCardImage,
		func(status string, progress float64) {
			metrics.OCRProgress.WithLabelValues(FlowSecureResult).Set(progress)
		})
	if err != nil {
		return err
	}
	st.regNumber = regNumber
	return nil
}

func (f *SecureResultFlow) hashAnswers(ctx context.Context, st *secureState) error {
	st.stage = StageHashing
	st.digest = integrity.Digest(st.decoded.AnswerString)
	return nil
}

func (f *SecureResultFlow) resolveCandidate(ctx context.Context, st *secureState) error {
	st.stage = StageResolvingCandidate
	candidate, err := f.candidates.FindByRegistration(ctx, st.regNumber)
	if err != nil {
		return err
	}
	st.candidate = candidate
	return nil
}

func (f *SecureResultFlow) persist(ctx context.Context, st *secureState) error {
	st.stage = StagePersisting

	answered := 0
	for i := 0; i < len(st.decoded.AnswerString); i++ {
		if c := st.decoded.AnswerString[i]; c != '-' && c != ' ' {
			answered++
		}
	}

	rec := &registry.ExamResultRecord{
		RegistrationNumber: st.regNumber,
		CandidateID:        st.candidate.ID,
		AnswerString:       st.decoded.AnswerString,
		AnswerStringHash:   st.digest,
		OMRName:            st.decoded.Name,
		OMRRollNumber:      st.decoded.RollNumber,
		Version:            st.decoded.Version,
		TotalQuestions:     st.decoded.QuestionCount(),
		AnsweredQuestions:  answered,
		Status:             registry.StatusSecured,
	}
	if err := f.examResults.Create(ctx, rec); err != nil {
		return err
	}
	st.examResult = rec

	f.logger.Info("exam result secured", map[string]interface{}{
		"registrationNumber": rec.RegistrationNumber,
		"answeredQuestions":  rec.AnsweredQuestions,
		"totalQuestions":     rec.TotalQuestions,
		"hash":               rec.AnswerStringHash,
	})
	return nil
}
