// internal/pipeline/classify.go
package pipeline

import (
	stderrors "errors"

	"examflow-workers/internal/common/errors"
	"examflow-workers/internal/ocr"
	"examflow-workers/internal/omr"
	"examflow-workers/internal/registry"
)

// Classify maps a flow failure onto the shared error taxonomy. The stage the
// flow stopped in is attached so workers and the audit trail agree on where
// things went wrong.
func Classify(registrationNumber string, err error) *errors.StandardError {
	var stageErr *StageError
	stage := ""
	cause := err
	if stderrors.As(err, &stageErr) {
		stage = string(stageErr.Stage)
		cause = stageErr.Err
	}

	std := classifyCause(registrationNumber, cause)
	if stage != "" {
		std = std.WithStage(stage)
	}
	return std
}

func classifyCause(registrationNumber string, err error) *errors.StandardError {
	switch {
	case stderrors.Is(err, ocr.ErrExtractionFailed):
		return errors.NewExtractionFailedError(err.Error())
	case stderrors.Is(err, omr.ErrDecodeUnavailable):
		return errors.NewDecodeUnavailableError(err)
	case stderrors.Is(err, omr.ErrDecodeRejected):
		return errors.NewDecodeRejectedError(0, err.Error())
	case stderrors.Is(err, omr.ErrDuplicateSheet):
		return errors.NewDuplicateSheetError(err)
	case stderrors.Is(err, registry.ErrCandidateNotFound):
		return errors.NewCandidateNotFoundError(registrationNumber)
	case stderrors.Is(err, registry.ErrExamResultNotFound):
		return errors.NewResultNotSecuredError(registrationNumber)
	case stderrors.Is(err, registry.ErrNoActiveAnswerKey):
		return errors.NewNoActiveAnswerKeyError(err)
	case stderrors.Is(err, registry.ErrMultipleActiveKeys):
		return errors.NewMultipleActiveKeysError(err)
	case stderrors.Is(err, registry.ErrAnswerKeyMalformed):
		return errors.NewAnswerKeyMalformedError(err)
	case stderrors.Is(err, registry.ErrDuplicateExamResult):
		return errors.NewDuplicateExamResultError(registrationNumber)
	case stderrors.Is(err, registry.ErrDuplicateFinalResult):
		return errors.NewDuplicateFinalResultError(registrationNumber)
	default:
		return errors.NewQueryExecutionFailedError("registry", err)
	}
}
