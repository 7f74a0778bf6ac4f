// internal/workers/results/secure-result/handler.go
package secureresult

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"examflow-workers/internal/common/logger"
	"examflow-workers/internal/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "examflow-workers/internal/common/errors"
)

const (
	TaskType = "secure-result"
)

var (
	ErrMissingAdmitCard = errors.New("MISSING_ADMIT_CARD")
	ErrMissingOMRSheet  = errors.New("MISSING_OMR_SHEET")
)

type Handler struct {
	config       *Config
	flow         *pipeline.SecureResultFlow
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, flow *pipeline.SecureResultFlow, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		flow:         flow,
		errorHandler: commonerrors.NewErrorHandler(log),
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.AdmitCardImage == "" {
		return nil, ErrMissingAdmitCard
	}
	if input.OMRSheetImage == "" {
		return nil, ErrMissingOMRSheet
	}

	admitCard, err := base64.StdEncoding.DecodeString(input.AdmitCardImage)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64", ErrMissingAdmitCard)
	}
	sheet, err := base64.StdEncoding.DecodeString(input.OMRSheetImage)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64", ErrMissingOMRSheet)
	}

	fileName := input.OMRFileName
	if fileName == "" {
		fileName = "omr-sheet.png"
	}

	result, err := h.flow.Run(ctx, &pipeline.SecureInput{
		AdmitCardImage: admitCard,
		OMRSheetImage:  sheet,
		OMRFileName:    fileName,
	})
	if err != nil {
		return nil, pipeline.Classify("", err)
	}

	return &Output{
		RegistrationNumber: result.RegistrationNumber,
		CandidateID:        result.CandidateID,
		ExamResultID:       result.ExamResultID,
		AnswerStringHash:   result.AnswerStringHash,
		TotalQuestions:     result.TotalQuestions,
		AnsweredQuestions:  result.AnsweredQuestions,
		Status:             result.Status,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
