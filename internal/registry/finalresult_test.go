// internal/registry/finalresult_test.go
package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examflow-workers/internal/common/logger"
)

func TestFinalResultStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := &FinalResultRecord{
		RegistrationNumber: "XYZ1733750400123042",
		CandidateID:        "cand-1",
		AnswerString:       "AB-CD",
		AnswerStringHash:   "07d0e0e2c86f9e99c2a4c12144acc4fcbe7cf38e92f9d43c01219bf2a8d52da6",
		CorrectAnswers:     4,
		WrongAnswers:       0,
		Unattempted:        1,
		Score:              4,
		Percentage:         80,
		TotalQuestions:     5,
		AnsweredQuestions:  4,
	}

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(rec.RegistrationNumber).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO final_results`).
		WithArgs(sqlmock.AnyArg(), rec.RegistrationNumber, rec.CandidateID,
			rec.AnswerString, rec.AnswerStringHash,
			rec.CorrectAnswers, rec.WrongAnswers, rec.Unattempted,
			rec.Score, rec.Percentage, rec.TotalQuestions, rec.AnsweredQuestions,
			StatusPublished, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewFinalResultStore(db, logger.NewTestLogger(t))
	require.NoError(t, store.Create(context.Background(), rec))

	assert.Equal(t, StatusPublished, rec.Status)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.GeneratedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalResultStore_Create_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewFinalResultStore(db, logger.NewTestLogger(t))
	err = store.Create(context.Background(), &FinalResultRecord{RegistrationNumber: "XYZ1"})
	assert.True(t, errors.Is(err, ErrDuplicateFinalResult))
}
