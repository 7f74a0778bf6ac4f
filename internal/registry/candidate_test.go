// internal/registry/candidate_test.go
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examflow-workers/internal/common/logger"
)

func testCandidate() *CandidateRecord {
	return &CandidateRecord{
		ID:                 "cand-1",
		RegistrationNumber: "XYZ1733750400123042",
		Name:               "A. Candidate",
		Email:              "a.candidate@example.com",
		Phone:              "+910000000001",
		DateOfBirth:        "1999-04-12",
		ExamName:           "SSC-2026",
		ExamCategory:       "GENERAL",
		ExamCenter:         "Center 04",
		CreatedAt:          time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestCandidateStore_FindByRegistration_CacheMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, redisMock := redismock.NewClientMock()
	want := testCandidate()
	cached, err := json.Marshal(want)
	require.NoError(t, err)

	redisMock.ExpectGet("candidate:" + want.RegistrationNumber).RedisNil()
	mock.ExpectQuery(`SELECT id, registration_number, name, email, phone, date_of_birth`).
		WithArgs(want.RegistrationNumber).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "registration_number", "name", "email", "phone", "date_of_birth",
			"exam_name", "exam_category", "exam_center", "created_at",
		}).AddRow(want.ID, want.RegistrationNumber, want.Name, want.Email, want.Phone, want.DateOfBirth,
			want.ExamName, want.ExamCategory, want.ExamCenter, want.CreatedAt))
	redisMock.ExpectSet("candidate:"+want.RegistrationNumber, cached, candidateCacheTTL).SetVal("OK")

	store := NewCandidateStore(db, rdb, logger.NewTestLogger(t))
	got, err := store.FindByRegistration(context.Background(), want.RegistrationNumber)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCandidateStore_FindByRegistration_CacheHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, redisMock := redismock.NewClientMock()
	want := testCandidate()
	cached, err := json.Marshal(want)
	require.NoError(t, err)

	redisMock.ExpectGet("candidate:" + want.RegistrationNumber).SetVal(string(cached))

	store := NewCandidateStore(db, rdb, logger.NewTestLogger(t))
	got, err := store.FindByRegistration(context.Background(), want.RegistrationNumber)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCandidateStore_FindByRegistration_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, redisMock := redismock.NewClientMock()
	redisMock.ExpectGet("candidate:XYZ000").RedisNil()
	mock.ExpectQuery(`SELECT id, registration_number, name, email, phone, date_of_birth`).
		WithArgs("XYZ000").
		WillReturnError(sql.ErrNoRows)

	store := NewCandidateStore(db, rdb, logger.NewTestLogger(t))
	_, err = store.FindByRegistration(context.Background(), "XYZ000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCandidateNotFound))
}

func TestCandidateStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, _ := redismock.NewClientMock()
	rec := testCandidate()
	mock.ExpectExec(`INSERT INTO candidates`).
		WithArgs(rec.ID, rec.RegistrationNumber, rec.Name, rec.Email, rec.Phone, rec.DateOfBirth,
			rec.ExamName, rec.ExamCategory, rec.ExamCenter, rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewCandidateStore(db, rdb, logger.NewTestLogger(t))
	require.NoError(t, store.Create(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateStore_Create_MintsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, _ := redismock.NewClientMock()
	rec := testCandidate()
	rec.ID = ""
	mock.ExpectExec(`INSERT INTO candidates`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewCandidateStore(db, rdb, logger.NewTestLogger(t))
	require.NoError(t, store.Create(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
}

// Second lookup must be served from redis; sqlmock would reject a second query.
func TestCandidateStore_FindByRegistration_CacheRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	want := testCandidate()
	mock.ExpectQuery(`SELECT id, registration_number, name, email, phone, date_of_birth`).
		WithArgs(want.RegistrationNumber).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "registration_number", "name", "email", "phone", "date_of_birth",
			"exam_name", "exam_category", "exam_center", "created_at",
		}).AddRow(want.ID, want.RegistrationNumber, want.Name, want.Email, want.Phone, want.DateOfBirth,
			want.ExamName, want.ExamCategory, want.ExamCenter, want.CreatedAt))

	store := NewCandidateStore(db, rdb, logger.NewTestLogger(t))

	first, err := store.FindByRegistration(context.Background(), want.RegistrationNumber)
	require.NoError(t, err)
	assert.Equal(t, want.ID, first.ID)

	second, err := store.FindByRegistration(context.Background(), want.RegistrationNumber)
	require.NoError(t, err)
	assert.Equal(t, want.ID, second.ID)
	assert.Equal(t, want.Name, second.Name)

	assert.NoError(t, mock.ExpectationsWereMet())

	// cached entry expires
	mr.FastForward(candidateCacheTTL + time.Second)
	assert.False(t, mr.Exists("candidate:"+want.RegistrationNumber))
}
