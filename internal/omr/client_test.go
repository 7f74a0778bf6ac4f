package omr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examflow-workers/internal/common/logger"
)

func TestDecode_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/process-omr", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "sheet-042.png", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "A. Candidate",
			"roll_number": "042",
			"version": "B",
			"answers": {"Q1": "A", "Q2": "B", "Q3": null, "Q4": "c", "Q5": "D"},
			"answer_string": "AB-CD"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute, logger.NewTestLogger(t))
	decoded, err := client.Decode(context.Background(), "sheet-042.png", []byte("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "A. Candidate", decoded.Name)
	assert.Equal(t, "042", decoded.RollNumber)
	assert.Equal(t, "B", decoded.Version)
	assert.Equal(t, "AB-CD", decoded.AnswerString)
	assert.Equal(t, 5, decoded.QuestionCount())
}

func TestDecode_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "decoder overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute, logger.NewTestLogger(t))
	_, err := client.Decode(context.Background(), "sheet.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecodeUnavailable))
	assert.Contains(t, err.Error(), "decoder overloaded")
}

func TestDecode_ClientErrorIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unreadable sheet", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute, logger.NewTestLogger(t))
	_, err := client.Decode(context.Background(), "sheet.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecodeRejected))
	assert.Contains(t, err.Error(), "unreadable sheet")
}

func TestDecode_ConnectionRefusedIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, time.Minute, logger.NewTestLogger(t))
	_, err := client.Decode(context.Background(), "sheet.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecodeUnavailable))
}

func TestDecode_SchemaViolationIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "no answers here"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute, logger.NewTestLogger(t))
	_, err := client.Decode(context.Background(), "sheet.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecodeRejected))
}

func TestDecode_EmptyAnswersIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answers": {}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute, logger.NewTestLogger(t))
	_, err := client.Decode(context.Background(), "sheet.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecodeRejected))
}

func TestDecode_AnswerStringMismatchIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"answers": {"Q1": "A", "Q2": "B"},
			"answer_string": "AC"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute, logger.NewTestLogger(t))
	_, err := client.Decode(context.Background(), "sheet.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecodeRejected))
	assert.Contains(t, err.Error(), "disagrees")
}

func TestDecode_MultiCharAnswerIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answers": {"Q1": "AB"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute, logger.NewTestLogger(t))
	_, err := client.Decode(context.Background(), "sheet.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecodeRejected))
}

func TestNormalize_MissingMiddleQuestionsPadded(t *testing.T) {
	decoded := &DecodedAnswerSet{Answers: map[string]string{"Q1": "A", "Q4": "D"}}
	require.NoError(t, decoded.Normalize())
	assert.Equal(t, "A--D", decoded.AnswerString)
}

func TestNormalize_InvalidKeyRejected(t *testing.T) {
	decoded := &DecodedAnswerSet{Answers: map[string]string{"question-1": "A"}}
	assert.Error(t, decoded.Normalize())
}

func TestNormalize_MultiCharAnswerRejected(t *testing.T) {
	decoded := &DecodedAnswerSet{Answers: map[string]string{"Q1": "A", "Q2": "BC"}}
	err := decoded.Normalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multi-character")
}
