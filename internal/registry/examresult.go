// internal/registry/examresult.go
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"examflow-workers/internal/common/logger"
)

// ExamResultStore persists secured responses. Rows are written once and never
// updated; a second attempt for the same registration number is rejected.
type ExamResultStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewExamResultStore(db *sql.DB, log logger.Logger) *ExamResultStore {
	return &ExamResultStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "exam_results"}),
	}
}

// FindByRegistration returns the secured response for a registration number.
// ErrExamResultNotFound when no response has been secured yet.
func (s *ExamResultStore) FindByRegistration(ctx context.Context, registrationNumber string) (*ExamResultRecord, error) {
	var rec ExamResultRecord
	query := `SELECT id, registration_number, candidate_id, answer_string, answer_string_hash,
			omr_name, omr_roll_number, version, total_questions, answered_questions, status, created_at
		FROM exam_results WHERE registration_number = $1`
	err := s.db.QueryRowContext(ctx, query, registrationNumber).Scan(
		&rec.ID, &rec.RegistrationNumber, &rec.CandidateID,
		&rec.AnswerString, &rec.AnswerStringHash,
		&rec.OMRName, &rec.OMRRollNumber, &rec.Version,
		&rec.TotalQuestions, &rec.AnsweredQuestions, &rec.Status, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExamResultNotFound
		}
		return nil, fmt.Errorf("query exam result: %w", err)
	}
	return &rec, nil
}

// Create secures a response. ErrDuplicateExamResult when one already exists
// for the registration number.
func (s *ExamResultStore) Create(ctx context.Context, rec *ExamResultRecord) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM exam_results WHERE registration_number = $1)`,
		rec.RegistrationNumber).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check exam result: %w", err)
	}
	if exists {
		return ErrDuplicateExamResult
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusSecured
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exam_results (id, registration_number, candidate_id, answer_string, answer_string_hash,
			omr_name, omr_roll_number, version, total_questions, answered_questions, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.RegistrationNumber, rec.CandidateID, rec.AnswerString, rec.AnswerStringHash,
		rec.OMRName, rec.OMRRollNumber, rec.Version,
		rec.TotalQuestions, rec.AnsweredQuestions, rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exam result: %w", err)
	}

	s.logger.Info("exam result secured", map[string]interface{}{
		"registrationNumber": rec.RegistrationNumber,
		"answeredQuestions":  rec.AnsweredQuestions,
		"totalQuestions":     rec.TotalQuestions,
	})
	return nil
}
