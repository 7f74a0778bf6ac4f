// internal/registry/candidate.go
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"examflow-workers/internal/common/logger"
)

const candidateCacheTTL = 5 * time.Minute

// CandidateStore reads and writes the candidate registry. Lookups go through
// a redis cache because the same candidate is resolved by both flows.
type CandidateStore struct {
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
}

func NewCandidateStore(db *sql.DB, rdb *redis.Client, log logger.Logger) *CandidateStore {
	return &CandidateStore{
		db:     db,
		redis:  rdb,
		logger: log.WithFields(map[string]interface{}{"store": "candidates"}),
	}
}

// FindByRegistration resolves a registration number to its candidate.
// ErrCandidateNotFound when the number is not in the registry.
func (s *CandidateStore) FindByRegistration(ctx context.Context, registrationNumber string) (*CandidateRecord, error) {
	cacheKey := "candidate:" + registrationNumber
	if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var cached CandidateRecord
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			return &cached, nil
		}
	}

	var rec CandidateRecord
	query := `SELECT id, registration_number, name, email, phone, date_of_birth,
			exam_name, exam_category, exam_center, created_at
		FROM candidates WHERE registration_number = $1`
	err := s.db.QueryRowContext(ctx, query, registrationNumber).Scan(
		&rec.ID, &rec.RegistrationNumber, &rec.Name,
		&rec.Email, &rec.Phone, &rec.DateOfBirth,
		&rec.ExamName, &rec.ExamCategory, &rec.ExamCenter, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCandidateNotFound
		}
		return nil, fmt.Errorf("query candidate: %w", err)
	}

	if data, err := json.Marshal(&rec); err == nil {
		s.redis.Set(ctx, cacheKey, data, candidateCacheTTL)
	}
	return &rec, nil
}

// Create registers a candidate. The ID is minted here when the caller leaves
// it empty.
func (s *CandidateStore) Create(ctx context.Context, rec *CandidateRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (id, registration_number, name, email, phone, date_of_birth,
			exam_name, exam_category, exam_center, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.RegistrationNumber, rec.Name, rec.Email, rec.Phone, rec.DateOfBirth,
		rec.ExamName, rec.ExamCategory, rec.ExamCenter, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}

	s.logger.Info("candidate registered", map[string]interface{}{
		"registrationNumber": rec.RegistrationNumber,
	})
	return nil
}
