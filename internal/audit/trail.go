// internal/audit/trail.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"examflow-workers/internal/common/logger"
)

// Entry is one audit record: what happened to which registration number in
// which flow, and where it stopped if it failed.
type Entry struct {
	FlowName           string    `json:"flowName"`
	RegistrationNumber string    `json:"registrationNumber"`
	Stage              string    `json:"stage"`
	Outcome            string    `json:"outcome"`
	ErrorCode          string    `json:"errorCode,omitempty"`
	Detail             string    `json:"detail,omitempty"`
	DurationMs         int64     `json:"durationMs"`
	Timestamp          time.Time `json:"@timestamp"`
}

const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Trail indexes flow outcomes into Elasticsearch. Recording is best effort:
// an unreachable cluster is logged and swallowed, it never fails a flow.
type Trail struct {
	es      *elasticsearch.Client
	index   string
	enabled bool
	logger  logger.Logger
}

func NewTrail(es *elasticsearch.Client, index string, enabled bool, log logger.Logger) *Trail {
	return &Trail{
		es:      es,
		index:   index,
		enabled: enabled,
		logger:  log.WithFields(map[string]interface{}{"component": "audit-trail"}),
	}
}

// Disabled returns a trail that drops every entry, for deployments without
// an Elasticsearch cluster.
func Disabled(log logger.Logger) *Trail {
	return NewTrail(nil, "", false, log)
}

func (t *Trail) Record(ctx context.Context, entry Entry) {
	if !t.enabled || t.es == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(entry)
	if err != nil {
		t.logger.Warn("failed to marshal audit entry", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	req := esapi.IndexRequest{
		Index:      t.index,
		DocumentID: uuid.NewString(),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, t.es)
	if err != nil {
		t.logger.Warn("audit index failed", map[string]interface{}{
			"error": err.Error(),
			"flow":  entry.FlowName,
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		t.logger.Warn("audit index rejected", map[string]interface{}{
			"status": res.Status(),
			"flow":   entry.FlowName,
		})
	}
}

// RecordCompletion and RecordFailure are the two shapes every flow emits.

func (t *Trail) RecordCompletion(ctx context.Context, flow, registrationNumber string, duration time.Duration) {
	t.Record(ctx, Entry{
		FlowName:           flow,
		RegistrationNumber: registrationNumber,
		Outcome:            OutcomeCompleted,
		DurationMs:         duration.Milliseconds(),
	})
}

func (t *Trail) RecordFailure(ctx context.Context, flow, registrationNumber, stage, errorCode string, err error, duration time.Duration) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	t.Record(ctx, Entry{
		FlowName:           flow,
		RegistrationNumber: registrationNumber,
		Stage:              stage,
		Outcome:            OutcomeFailed,
		ErrorCode:          errorCode,
		Detail:             detail,
		DurationMs:         duration.Milliseconds(),
	})
}

// String implements fmt.Stringer for log lines.
func (e Entry) String() string {
	return fmt.Sprintf("%s/%s %s", e.FlowName, e.RegistrationNumber, e.Outcome)
}
