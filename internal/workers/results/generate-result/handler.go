// internal/workers/results/generate-result/handler.go
package generateresult

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
	TaskType = "generate-result"
)

var ErrMissingIdentity = errors.New("MISSING_IDENTITY")

type Handler struct {
	config       *Config
	flow         *pipeline.GenerateResultFlow
	errorHandler *commonerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, flow *pipeline.GenerateResultFlow, log logger.Logger) *Handler {
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
	if input.AdmitCardImage == "" && input.RegistrationNumber == "" {
		return nil, ErrMissingIdentity
	}

	var admitCard []byte
	if input.AdmitCardImage != "" {
		decoded, err := base64.StdEncoding.DecodeString(input.AdmitCardImage)
		if err != nil {
			return nil, fmt.Errorf("%w: admit card not valid base64", ErrMissingIdentity)
		}
		admitCard = decoded
	}

	result, err := h.flow.Run(ctx, &pipeline.GenerateInput{
		AdmitCardImage:     admitCard,
		RegistrationNumber: input.RegistrationNumber,
	})
	if err != nil {
		return nil, pipeline.Classify(input.RegistrationNumber, err)
	}

	return &Output{
		RegistrationNumber: result.RegistrationNumber,
		FinalResultID:      result.FinalResultID,
		CorrectAnswers:     result.CorrectAnswers,
		WrongAnswers:       result.WrongAnswers,
		Unattempted:        result.Unattempted,
		Score:              result.Score,
		Percentage:         result.Percentage,
		TotalQuestions:     result.TotalQuestions,
		AnsweredQuestions:  result.AnsweredQuestions,
		Status:             result.Status,
		LengthMismatch:     result.LengthMismatch,
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
