// Package errors provides standardized error handling for the exam
// verification pipeline and its BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Input errors: the candidate (or the scanned artifact) can correct these.
const (
	ErrCodeExtractionFailed     ErrorCode = "EXTRACTION_FAILED"
	ErrCodeDecodeRejected       ErrorCode = "DECODE_REJECTED"
	ErrCodeCandidateNotFound    ErrorCode = "CANDIDATE_NOT_FOUND"
	ErrCodeResultNotSecured     ErrorCode = "RESULT_NOT_SECURED"
	ErrCodeNoActiveAnswerKey    ErrorCode = "NO_ACTIVE_ANSWER_KEY"
	ErrCodeDuplicateExamResult  ErrorCode = "DUPLICATE_EXAM_RESULT"
	ErrCodeDuplicateFinalResult ErrorCode = "DUPLICATE_FINAL_RESULT"
)

// Transient infrastructure errors: the whole flow is safe to re-run.
const (
	ErrCodeDecodeUnavailable        ErrorCode = "DECODE_UNAVAILABLE"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
)

// Invariant violations: data-integrity problems outside the candidate's
// control. Fatal for the flow and logged distinctly from input errors.
const (
	ErrCodeMultipleActiveKeys ErrorCode = "MULTIPLE_ACTIVE_KEYS"
	ErrCodeAnswerKeyMalformed ErrorCode = "ANSWER_KEY_MALFORMED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Stage     string                 `json:"stage,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithStage tags the error with the pipeline stage that produced it.
func (e *StandardError) WithStage(stage string) *StandardError {
	e.Stage = stage
	return e
}

// WithDetails replaces the diagnostic detail string.
func (e *StandardError) WithDetails(details string) *StandardError {
	e.Details = details
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewExtractionFailedError creates a non-retryable OCR extraction error.
func NewExtractionFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Could not extract registration number from admit card",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDecodeRejectedError creates a non-retryable decoder rejection error.
// The decoder was reachable but refused the sheet; the response body is
// carried as diagnostic detail.
func NewDecodeRejectedError(status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDecodeRejected,
		Message:   "OMR decoder rejected the sheet",
		Details:   fmt.Sprintf("status: %d, body: %s", status, body),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDecodeUnavailableError creates a retryable decoder transport error.
func NewDecodeUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDecodeUnavailable,
		Message:   "OMR decoder service unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCandidateNotFoundError creates a non-retryable lookup error. This is a
// legitimate terminal outcome, not a system failure.
func NewCandidateNotFoundError(registrationNumber string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCandidateNotFound,
		Message:   "No candidate found with this registration number",
		Details:   fmt.Sprintf("registrationNumber: %s", registrationNumber),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResultNotSecuredError tells the caller the OMR sheet must be processed
// before a result can be generated.
func NewResultNotSecuredError(registrationNumber string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResultNotSecured,
		Message:   "No secured exam result for this candidate; process the OMR sheet first",
		Details:   fmt.Sprintf("registrationNumber: %s", registrationNumber),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoActiveAnswerKeyError creates a non-retryable answer key lookup error.
func NewNoActiveAnswerKeyError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoActiveAnswerKey,
		Message:   "No active answer key found for this exam",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateSheetError rejects a sheet image whose digest was already
// processed by an earlier run.
func NewDuplicateSheetError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateExamResult,
		Message:   "This answer sheet has already been processed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateExamResultError rejects re-processing of an already secured sheet.
func NewDuplicateExamResultError(registrationNumber string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateExamResult,
		Message:   "An exam result has already been secured for this candidate",
		Details:   fmt.Sprintf("registrationNumber: %s", registrationNumber),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateFinalResultError rejects re-scoring an already published result.
func NewDuplicateFinalResultError(registrationNumber string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateFinalResult,
		Message:   "A final result has already been published for this candidate",
		Details:   fmt.Sprintf("registrationNumber: %s", registrationNumber),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable registry query error.
func NewQueryExecutionFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Registry query execution error",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable persist error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMultipleActiveKeysError flags more than one active answer key for an
// exam. The comparator must never silently pick one.
func NewMultipleActiveKeysError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMultipleActiveKeys,
		Message:   "More than one active answer key for exam",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnswerKeyMalformedError flags an answer key whose string length does not
// match its declared question count.
func NewAnswerKeyMalformedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnswerKeyMalformed,
		Message:   "Answer key length does not match totalQuestions",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes (identical
// by convention, kept explicit so workflow models have a single source).
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeExtractionFailed:         "EXTRACTION_FAILED",
	ErrCodeDecodeRejected:           "DECODE_REJECTED",
	ErrCodeDecodeUnavailable:        "DECODE_UNAVAILABLE",
	ErrCodeCandidateNotFound:        "CANDIDATE_NOT_FOUND",
	ErrCodeResultNotSecured:         "RESULT_NOT_SECURED",
	ErrCodeNoActiveAnswerKey:        "NO_ACTIVE_ANSWER_KEY",
	ErrCodeDuplicateExamResult:      "DUPLICATE_EXAM_RESULT",
	ErrCodeDuplicateFinalResult:     "DUPLICATE_FINAL_RESULT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeMultipleActiveKeys:       "MULTIPLE_ACTIVE_KEYS",
	ErrCodeAnswerKeyMalformed:       "ANSWER_KEY_MALFORMED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed:
		return 3 // Retryable technical errors

	case ErrCodeDecodeUnavailable:
		return 2 // Decoder transport failures; the flow is safe to re-run

	default:
		return 0 // Input errors and invariant violations: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	errorVariables := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if stdErr.Stage != "" {
		errorVariables["stage"] = stdErr.Stage
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: errorVariables,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsInvariantViolation reports whether the code indicates a data-integrity
// problem rather than a caller-correctable input.
func IsInvariantViolation(code ErrorCode) bool {
	return code == ErrCodeMultipleActiveKeys || code == ErrCodeAnswerKeyMalformed
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "EXTRACTION"):
		return "OCR"
	case strings.Contains(codeStr, "DECODE"):
		return "DECODER"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "KEY"):
		return "ANSWER_KEY"
	case strings.Contains(codeStr, "DUPLICATE"):
		return "DEDUP"
	case strings.Contains(codeStr, "NOT_FOUND") || strings.Contains(codeStr, "NOT_SECURED"):
		return "LOOKUP"
	default:
		return "OTHER"
	}
}
