// internal/pipeline/generate.go
package pipeline

import (
	"context"
	"time"

	"examflow-workers/internal/common/logger"
	"examflow-workers/internal/common/metrics"
	"examflow-workers/internal/registry"
	"examflow-workers/internal/scoring"
)

const FlowGenerateResult = "generate-result"

// GenerateInput is the admit card scan identifying whose result to publish.
// A caller that already knows the registration number can set it and skip OCR.
type GenerateInput struct {
	AdmitCardImage     []byte
	RegistrationNumber string
}

// GenerateOutput reports the published score back to the process instance.
type GenerateOutput struct {
	RegistrationNumber string  `json:"registrationNumber"`
	FinalResultID      string  `json:"finalResultId"`
	CorrectAnswers     int     `json:"correctAnswers"`
	WrongAnswers       int     `json:"wrongAnswers"`
	Unattempted        int     `json:"unattempted"`
	Score              int     `json:"score"`
	Percentage         float64 `json:"percentage"`
	TotalQuestions     int     `json:"totalQuestions"`
	AnsweredQuestions  int     `json:"answeredQuestions"`
	Status             string  `json:"status"`
	LengthMismatch     bool    `json:"lengthMismatch"`
}

// GenerateResultFlow scores a secured response against the active answer key
// and publishes the final result. Prerequisites missing from the registry
// abort the flow before anything is written.
type GenerateResultFlow struct {
	extractor    IdentifierExtractor
	candidates   CandidateFinder
	examResults  ExamResultStore
	answerKeys   AnswerKeyFinder
	finalResults FinalResultCreator
	audit        AuditRecorder
	publisher    ResultPublisher
	logger       logger.Logger
}

func NewGenerateResultFlow(
	extractor IdentifierExtractor,
	candidates CandidateFinder,
	examResults ExamResultStore,
	answerKeys AnswerKeyFinder,
	finalResults FinalResultCreator,
	audit AuditRecorder,
	publisher ResultPublisher,
	log logger.Logger,
) *GenerateResultFlow {
	return &GenerateResultFlow{
		extractor:    extractor,
		candidates:   candidates,
		examResults:  examResults,
		answerKeys:   answerKeys,
		finalResults: finalResults,
		audit:        audit,
		publisher:    publisher,
		logger:       log.WithFields(map[string]interface{}{"flow": FlowGenerateResult}),
	}
}

type generateState struct {
	stage       Stage
	input       *GenerateInput
	regNumber   string
	candidate   *registry.CandidateRecord
	examResult  *registry.ExamResultRecord
	answerKey   *registry.AnswerKeyRecord
	breakdown   scoring.Breakdown
	finalResult *registry.FinalResultRecord
}

// Run drives the flow: ExtractingIdentifier, ResolvingCandidate,
// ResolvingExamResult, ResolvingAnswerKey, Comparing, Persisting, Done.
func (f *GenerateResultFlow) Run(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	start := time.Now()
	st := &generateState{stage: StageExtractingIdentifier, input: input}

	transitions := []func(context.Context, *generateState) error{
		f.extractIdentifier,
		f.resolveCandidate,
		f.resolveExamResult,
		f.resolveAnswerKey,
		f.compare,
		f.persist,
	}

	for _, transition := range transitions {
		stageStart := time.Now()
		err := transition(ctx, st)
		metrics.StageDuration.WithLabelValues(FlowGenerateResult, string(st.stage)).
			Observe(time.Since(stageStart).Seconds())
		if err != nil {
			stageErr := failAt(st.stage, err)
			code := string(Classify(st.regNumber, stageErr).Code)
			metrics.FlowsFailed.WithLabelValues(FlowGenerateResult, string(st.stage), code).Inc()
			f.audit.RecordFailure(ctx, FlowGenerateResult, st.regNumber, string(st.stage),
				code, err, time.Since(start))
			return nil, stageErr
		}
	}
	st.stage = StageDone

	metrics.FlowsCompleted.WithLabelValues(FlowGenerateResult).Inc()
	metrics.FlowDuration.WithLabelValues(FlowGenerateResult).Observe(time.Since(start).Seconds())
	f.audit.RecordCompletion(ctx, FlowGenerateResult, st.regNumber, time.Since(start))

	if f.publisher != nil {
		f.publisher.ResultPublished(ctx, st.candidate, st.finalResult)
	}

	return &GenerateOutput{
		RegistrationNumber: st.finalResult.RegistrationNumber,
		FinalResultID:      st.finalResult.ID,
		CorrectAnswers:     st.finalResult.CorrectAnswers,
		WrongAnswers:       st.finalResult.WrongAnswers,
		Unattempted:        st.finalResult.Unattempted,
		Score:              st.finalResult.Score,
		Percentage:         st.finalResult.Percentage,
		TotalQuestions:     st.finalResult.TotalQuestions,
		AnsweredQuestions:  st.finalResult.AnsweredQuestions,
		Status:             st.finalResult.Status,
		LengthMismatch:     st.breakdown.LengthMismatch,
	}, nil
}

func (f *GenerateResultFlow) extractIdentifier(ctx context.Context, st *generateState) error {
	st.stage = StageExtractingIdentifier
	if st.input.RegistrationNumber != "" {
		st.regNumber = st.input.RegistrationNumber
		return nil
	}
	regNumber, err := f.extractor.ExtractIdentifier(ctx, st.input.AdmitCardImage,
		func(status string, progress float64) {
			metrics.OCRProgress.WithLabelValues(FlowGenerateResult).Set(progress)
		})
	if err != nil {
		return err
	}
	st.regNumber = regNumber
	return nil
}

func (f *GenerateResultFlow) resolveCandidate(ctx context.Context, st *generateState) error {
	st.stage = StageResolvingCandidate
	candidate, err := f.candidates.FindByRegistration(ctx, st.regNumber)
	if err != nil {
		return err
	}
	st.candidate = candidate
	return nil
}

func (f *GenerateResultFlow) resolveExamResult(ctx context.Context, st *generateState) error {
	st.stage = StageResolvingExamResult
	examResult, err := f.examResults.FindByRegistration(ctx, st.regNumber)
	if err != nil {
		return err
	}
	st.examResult = examResult
	return nil
}

func (f *GenerateResultFlow) resolveAnswerKey(ctx context.Context, st *generateState) error {
	st.stage = StageResolvingAnswerKey
	key, err := f.answerKeys.FindActive(ctx, st.candidate.ExamName)
	if err != nil {
		return err
	}
	st.answerKey = key
	return nil
}

func (f *GenerateResultFlow) compare(ctx context.Context, st *generateState) error {
	st.stage = StageComparing
	st.breakdown = scoring.Compare(st.examResult.AnswerString, st.answerKey.AnswerString)
	if st.breakdown.LengthMismatch {
		f.logger.Warn("answer string length differs from key", map[string]interface{}{
			"registrationNumber": st.regNumber,
			"candidateLength":    len(st.examResult.AnswerString),
			"keyLength":          len(st.answerKey.AnswerString),
			"compared":           st.breakdown.Compared,
		})
	}
	return nil
}

func (f *GenerateResultFlow) persist(ctx context.Context, st *generateState) error {
	st.stage = StagePersisting

	rec := &registry.FinalResultRecord{
		RegistrationNumber: st.regNumber,
		CandidateID:        st.candidate.ID,
		AnswerString:       st.examResult.AnswerString,
		AnswerStringHash:   st.examResult.AnswerStringHash,
		CorrectAnswers:     st.breakdown.Correct,
		WrongAnswers:       st.breakdown.Wrong,
		Unattempted:        st.breakdown.Unattempted,
		Score:              st.breakdown.Score(),
		Percentage:         scoring.Percentage(st.breakdown.Correct, st.answerKey.TotalQuestions),
		TotalQuestions:     st.answerKey.TotalQuestions,
		AnsweredQuestions:  st.examResult.AnsweredQuestions,
		Status:             registry.StatusPublished,
	}
	if err := f.finalResults.Create(ctx, rec); err != nil {
		return err
	}
	st.finalResult = rec

	f.logger.Info("final result published", map[string]interface{}{
		"registrationNumber": rec.RegistrationNumber,
		"score":              rec.Score,
		"percentage":         rec.Percentage,
	})
	return nil
}
