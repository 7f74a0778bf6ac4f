// internal/registry/finalresult.go
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

// FinalResultStore persists published scores. Like exam results, rows are
// write-once.
type FinalResultStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewFinalResultStore(db *sql.DB, log logger.Logger) *FinalResultStore {
	return &FinalResultStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "final_results"}),
	}
}

// FindByRegistration returns the published score for a registration number,
// or sql.ErrNoRows wrapped as a not-found.
func (s *FinalResultStore) FindByRegistration(ctx context.Context, registrationNumber string) (*FinalResultRecord, error) {
	var rec FinalResultRecord
	query := `SELECT id, registration_number, candidate_id, answer_string, answer_string_hash,
			correct_answers, wrong_answers, unattempted,
			score, percentage, total_questions, answered_questions, status, generated_at
		FROM final_results WHERE registration_number = $1`
	err := s.db.QueryRowContext(ctx, query, registrationNumber).Scan(
		&rec.ID, &rec.RegistrationNumber, &rec.CandidateID,
		&rec.AnswerString, &rec.AnswerStringHash,
		&rec.CorrectAnswers, &rec.WrongAnswers, &rec.Unattempted,
		&rec.Score, &rec.Percentage,
		&rec.TotalQuestions, &rec.AnsweredQuestions, &rec.Status, &rec.GeneratedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("final result for %s: %w", registrationNumber, err)
		}
		return nil, fmt.Errorf("query final result: %w", err)
	}
	return &rec, nil
}

// Create publishes a score. ErrDuplicateFinalResult when the registration
// number already has one.
func (s *FinalResultStore) Create(ctx context.Context, rec *FinalResultRecord) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM final_results WHERE registration_number = $1)`,
		rec.RegistrationNumber).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check final result: %w", err)
	}
	if exists {
		return ErrDuplicateFinalResult
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPublished
	}
	if rec.GeneratedAt.IsZero() {
		rec.GeneratedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO final_results (id, registration_number, candidate_id, answer_string, answer_string_hash,
			correct_answers, wrong_answers, unattempted,
			score, percentage, total_questions, answered_questions, status, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.RegistrationNumber, rec.CandidateID, rec.AnswerString, rec.AnswerStringHash,
		rec.CorrectAnswers, rec.WrongAnswers, rec.Unattempted,
		rec.Score, rec.Percentage,
		rec.TotalQuestions, rec.AnsweredQuestions, rec.Status, rec.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("insert final result: %w", err)
	}

	s.logger.Info("final result published", map[string]interface{}{
		"registrationNumber": rec.RegistrationNumber,
		"score":              rec.Score,
		"percentage":         rec.Percentage,
	})
	return nil
}
