// internal/registry/answerkey.go
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"examflow-workers/internal/common/logger"
)

// AnswerKeyStore manages answer keys. Scoring reads whichever key is active
// for the candidate's exam; activating a new key supersedes the previous one.
type AnswerKeyStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewAnswerKeyStore(db *sql.DB, log logger.Logger) *AnswerKeyStore {
	return &AnswerKeyStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "answer_keys"}),
	}
}

// FindActive returns the single active answer key for an exam. No active key
// yields ErrNoActiveAnswerKey; more than one is a registry corruption and
// yields ErrMultipleActiveKeys rather than silently picking one. A key whose
// string length disagrees with its question count yields ErrAnswerKeyMalformed.
func (s *AnswerKeyStore) FindActive(ctx context.Context, examName string) (*AnswerKeyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, exam_name, version, answer_string, total_questions, active, created_at
		FROM answer_keys WHERE exam_name = $1 AND active = true
		ORDER BY created_at DESC LIMIT 2`, examName)
	if err != nil {
		return nil, fmt.Errorf("query active answer key: %w", err)
	}
	defer rows.Close()

	var keys []AnswerKeyRecord
	for rows.Next() {
		var rec AnswerKeyRecord
		if err := rows.Scan(&rec.ID, &rec.ExamName, &rec.Version, &rec.AnswerString,
			&rec.TotalQuestions, &rec.Active, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer key: %w", err)
		}
		keys = append(keys, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer keys: %w", err)
	}

	switch len(keys) {
	case 0:
		return nil, fmt.Errorf("%w: exam %s", ErrNoActiveAnswerKey, examName)
	case 1:
	default:
		return nil, fmt.Errorf("%w: exam %s has %d active keys",
			ErrMultipleActiveKeys, examName, len(keys))
	}

	key := keys[0]
	if len(key.AnswerString) != key.TotalQuestions {
		return nil, fmt.Errorf("%w: key %s has %d answers for %d questions",
			ErrAnswerKeyMalformed, key.ID, len(key.AnswerString), key.TotalQuestions)
	}
	return &key, nil
}

// Create inserts a key. With supersede set, currently active keys for the
// same exam are deactivated in the same transaction so the single-active
// invariant holds.
func (s *AnswerKeyStore) Create(ctx context.Context, rec *AnswerKeyRecord, supersede bool) error {
	if len(rec.AnswerString) != rec.TotalQuestions {
		return fmt.Errorf("%w: %d answers for %d questions",
			ErrAnswerKeyMalformed, len(rec.AnswerString), rec.TotalQuestions)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin answer key tx: %w", err)
	}
	defer tx.Rollback()

	if supersede && rec.Active {
		if _, err := tx.ExecContext(ctx,
			`UPDATE answer_keys SET active = false WHERE exam_name = $1 AND active = true`,
			rec.ExamName); err != nil {
			return fmt.Errorf("supersede answer keys: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO answer_keys (id, exam_name, version, answer_string, total_questions, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.ExamName, rec.Version, rec.AnswerString, rec.TotalQuestions, rec.Active, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert answer key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit answer key tx: %w", err)
	}

	s.logger.Info("answer key stored", map[string]interface{}{
		"examName":       rec.ExamName,
		"version":        rec.Version,
		"totalQuestions": rec.TotalQuestions,
		"active":         rec.Active,
	})
	return nil
}
