// internal/pipeline/generate_test.go
package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examflow-workers/internal/common/logger"
	"examflow-workers/internal/registry"
)

func securedResult() *registry.ExamResultRecord {
	return &registry.ExamResultRecord{
		ID:                 "exam-1",
		RegistrationNumber: testRegNumber,
		CandidateID:        "cand-1",
		AnswerString:       "AB-CD",
		AnswerStringHash:   "07d0e0e2c86f9e99c2a4c12144acc4fcbe7cf38e92f9d43c01219bf2a8d52da6",
		TotalQuestions:     5,
		AnsweredQuestions:  4,
		Status:             registry.StatusSecured,
	}
}

func activeKey() *registry.AnswerKeyRecord {
	return &registry.AnswerKeyRecord{
		ID:             "key-1",
		ExamName:       testExamName,
		Version:        "B",
		AnswerString:   "ABACD",
		TotalQuestions: 5,
		Active:         true,
	}
}

func generateFlow(t *testing.T, extractor IdentifierExtractor, candidates CandidateFinder,
	examResults ExamResultStore, keys AnswerKeyFinder, finals FinalResultCreator,
	audit *fakeAudit, publisher ResultPublisher) *GenerateResultFlow {
	t.Helper()
	return NewGenerateResultFlow(extractor, candidates, examResults, keys, finals,
		audit, publisher, logger.NewTestLogger(t))
}

func TestGenerateResultFlow_EndToEnd(t *testing.T) {
	examResults := newFakeExamResults()
	examResults.records[testRegNumber] = securedResult()
	finals := &fakeFinalResults{}
	publisher := &fakePublisher{}
	audit := &fakeAudit{}
	keys := &fakeAnswerKeys{key: activeKey()}

	flow := generateFlow(t,
		&fakeExtractor{regNumber: testRegNumber},
		&fakeCandidates{records: map[string]*registry.CandidateRecord{
			testRegNumber: {ID: "cand-1", RegistrationNumber: testRegNumber, ExamName: testExamName, Email: "a@example.com"},
		}},
		examResults,
		keys,
		finals,
		audit,
		publisher,
	)

	out, err := flow.Run(context.Background(), &GenerateInput{AdmitCardImage: []byte("admit")})
	require.NoError(t, err)

	// "AB-CD" against "ABACD": 4 correct, 1 unattempted, 0 wrong.
	assert.Equal(t, 4, out.Score)
	assert.InDelta(t, 80.0, out.Percentage, 0.001)
	assert.Equal(t, 5, out.TotalQuestions)
	assert.Equal(t, registry.StatusPublished, out.Status)
	assert.False(t, out.LengthMismatch)
	assert.Equal(t, 4, out.CorrectAnswers)
	assert.Equal(t, 0, out.WrongAnswers)
	assert.Equal(t, 1, out.Unattempted)
	assert.Equal(t, testExamName, keys.examName)

	require.Len(t, finals.created, 1)
	rec := finals.created[0]
	assert.Equal(t, securedResult().AnswerStringHash, rec.AnswerStringHash)
	assert.Equal(t, "AB-CD", rec.AnswerString)
	assert.Equal(t, 4, rec.CorrectAnswers)
	assert.Equal(t, 0, rec.WrongAnswers)
	assert.Equal(t, 1, rec.Unattempted)
	assert.Equal(t, 5, rec.CorrectAnswers+rec.WrongAnswers+rec.Unattempted)

	require.Len(t, publisher.published, 1)
	require.Len(t, audit.calls, 1)
	assert.Equal(t, "completed", audit.calls[0].outcome)
}

func TestGenerateResultFlow_MissingKeyPersistsNothing(t *testing.T) {
	examResults := newFakeExamResults()
	examResults.records[testRegNumber] = securedResult()
	finals := &fakeFinalResults{}

	flow := generateFlow(t,
		&fakeExtractor{regNumber: testRegNumber},
		&fakeCandidates{records: map[string]*registry.CandidateRecord{
			testRegNumber: {ID: "cand-1"},
		}},
		examResults,
		&fakeAnswerKeys{err: registry.ErrNoActiveAnswerKey},
		finals,
		&fakeAudit{},
		nil,
	)

	_, err := flow.Run(context.Background(), &GenerateInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrNoActiveAnswerKey))

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageResolvingAnswerKey, stageErr.Stage)
	assert.Empty(t, finals.created)
}

func TestGenerateResultFlow_ResultNotSecured(t *testing.T) {
	finals := &fakeFinalResults{}
	flow := generateFlow(t,
		&fakeExtractor{regNumber: testRegNumber},
		&fakeCandidates{records: map[string]*registry.CandidateRecord{
			testRegNumber: {ID: "cand-1"},
		}},
		newFakeExamResults(),
		&fakeAnswerKeys{key: activeKey()},
		finals,
		&fakeAudit{},
		nil,
	)

	_, err := flow.Run(context.Background(), &GenerateInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrExamResultNotFound))
	assert.Empty(t, finals.created)
}

func TestGenerateResultFlow_DuplicateFinalResult(t *testing.T) {
	examResults := newFakeExamResults()
	examResults.records[testRegNumber] = securedResult()
	finals := &fakeFinalResults{err: registry.ErrDuplicateFinalResult}
	audit := &fakeAudit{}

	flow := generateFlow(t,
		&fakeExtractor{regNumber: testRegNumber},
		&fakeCandidates{records: map[string]*registry.CandidateRecord{
			testRegNumber: {ID: "cand-1"},
		}},
		examResults,
		&fakeAnswerKeys{key: activeKey()},
		finals,
		audit,
		nil,
	)

	_, err := flow.Run(context.Background(), &GenerateInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrDuplicateFinalResult))

	require.Len(t, audit.calls, 1)
	assert.Equal(t, "DUPLICATE_FINAL_RESULT", audit.calls[0].errorCode)
}

func TestGenerateResultFlow_LengthMismatchFlagged(t *testing.T) {
	secured := securedResult()
	secured.AnswerString = "AB-CDAB"
	examResults := newFakeExamResults()
	examResults.records[testRegNumber] = secured
	finals := &fakeFinalResults{}

	flow := generateFlow(t,
		&fakeExtractor{regNumber: testRegNumber},
		&fakeCandidates{records: map[string]*registry.CandidateRecord{
			testRegNumber: {ID: "cand-1"},
		}},
		examResults,
		&fakeAnswerKeys{key: activeKey()},
		finals,
		&fakeAudit{},
		nil,
	)

	out, err := flow.Run(context.Background(), &GenerateInput{})
	require.NoError(t, err)
	assert.True(t, out.LengthMismatch)
	assert.Equal(t, 4, out.Score)
	require.Len(t, finals.created, 1)
}
