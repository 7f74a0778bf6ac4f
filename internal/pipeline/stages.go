// internal/pipeline/stages.go
package pipeline

import "fmt"

// Stage names the step a flow was in when something happened. The values are
// stable identifiers used in metrics labels and audit records.
type Stage string

const (
	StageDecodingOMR          Stage = "decoding_omr"
	StageExtractingIdentifier Stage = "extracting_identifier"
	StageHashing              Stage = "hashing"
	StageResolvingCandidate   Stage = "resolving_candidate"
	StageResolvingExamResult  Stage = "resolving_exam_result"
	StageResolvingAnswerKey   Stage = "resolving_answer_key"
	StageComparing            Stage = "comparing"
	StagePersisting           Stage = "persisting"
	StageDone                 Stage = "done"
)

// StageError records where a flow stopped. Flows fail fast, so the first
// stage error aborts the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func failAt(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
