// internal/registry/models.go
package registry

import (
	"errors"
	"time"
)

var (
	ErrCandidateNotFound    = errors.New("CANDIDATE_NOT_FOUND")
	ErrExamResultNotFound   = errors.New("RESULT_NOT_SECURED")
	ErrNoActiveAnswerKey    = errors.New("NO_ACTIVE_ANSWER_KEY")
	ErrMultipleActiveKeys   = errors.New("MULTIPLE_ACTIVE_KEYS")
	ErrAnswerKeyMalformed   = errors.New("ANSWER_KEY_MALFORMED")
	ErrDuplicateExamResult  = errors.New("DUPLICATE_EXAM_RESULT")
	ErrDuplicateFinalResult = errors.New("DUPLICATE_FINAL_RESULT")
)

const (
	StatusSecured   = "secured"
	StatusPublished = "published"
)

// CandidateRecord is one registered examinee.
type CandidateRecord struct {
	ID                 string    `json:"id"`
	RegistrationNumber string    `json:"registrationNumber"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	DateOfBirth        string    `json:"dateOfBirth"`
	ExamName           string    `json:"examName"`
	ExamCategory       string    `json:"examCategory"`
	ExamCenter         string    `json:"examCenter"`
	CreatedAt          time.Time `json:"createdAt"`
}

// AnswerKeyRecord holds the correct answers for one exam paper. At most one
// key may be active per exam at a time.
type AnswerKeyRecord struct {
	ID             string    `json:"id"`
	ExamName       string    `json:"examName"`
	Version        string    `json:"version"`
	AnswerString   string    `json:"answerString"`
	TotalQuestions int       `json:"totalQuestions"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ExamResultRecord is a secured candidate response: the decoded answer string
// with its digest, frozen before any scoring happens.
type ExamResultRecord struct {
	ID                 string    `json:"id"`
	RegistrationNumber string    `json:"registrationNumber"`
	CandidateID        string    `json:"candidateId"`
	AnswerString       string    `json:"answerString"`
	AnswerStringHash   string    `json:"answerStringHash"`
	OMRName            string    `json:"omrName"`
	OMRRollNumber      string    `json:"omrRollNumber"`
	Version            string    `json:"version"`
	TotalQuestions     int       `json:"totalQuestions"`
	AnsweredQuestions  int       `json:"answeredQuestions"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
}

// FinalResultRecord is a published score for one candidate.
type FinalResultRecord struct {
	ID                 string    `json:"id"`
	RegistrationNumber string    `json:"registrationNumber"`
	CandidateID        string    `json:"candidateId"`
	AnswerString       string    `json:"answerString"`
	AnswerStringHash   string    `json:"answerStringHash"`
	CorrectAnswers     int       `json:"correctAnswers"`
	WrongAnswers       int       `json:"wrongAnswers"`
	Unattempted        int       `json:"unattempted"`
	Score              int       `json:"score"`
	Percentage         float64   `json:"percentage"`
	TotalQuestions     int       `json:"totalQuestions"`
	AnsweredQuestions  int       `json:"answeredQuestions"`
	Status             string    `json:"status"`
	GeneratedAt        time.Time `json:"generatedAt"`
}
