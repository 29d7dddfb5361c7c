// internal/workers/syllabus/parse-syllabus/handler.go
package parsesyllabus

import (
	"context"
	"time"

	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"
	"github.com/jacobschwantes/syllabase-parser/internal/common/metrics"
	"github.com/jacobschwantes/syllabase-parser/internal/common/observability"
	"github.com/jacobschwantes/syllabase-parser/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = registry.ParseSyllabusTaskType

const (
	TriggerZeebe = "zeebe"
	TriggerQueue = "queue"
)

// Processor runs the pipeline for one course id.
type Processor interface {
	Process(ctx context.Context, courseID string) (*Output, error)
}

// Handler adapts the pipeline to its two triggers: Zeebe jobs and queue
// messages.
type Handler struct {
	config       *Config
	processor    Processor
	validator    *InputValidator
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

func NewHandler(cfg *Config, processor Processor, validator *InputValidator, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       cfg,
		processor:    processor,
		validator:    validator,
		errorHandler: apperrors.NewErrorHandler(log),
		obs:          obs,
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
		"retries":     job.Retries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, TriggerZeebe, []byte(job.Variables))

	// The run may have used up ctx; broker commands get their own deadline.
	sendCtx, sendCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer sendCancel()

	if err != nil {
		h.errorHandler.HandleJobError(sendCtx, client, job, err)
		return
	}
	h.completeJob(sendCtx, client, job, output)
}

// HandleMessage processes one queue message body.
func (h *Handler) HandleMessage(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	_, err := h.Execute(ctx, TriggerQueue, payload)
	return err
}

// Execute validates the trigger payload and runs the pipeline, recording the
// outcome under trigger.
func (h *Handler) Execute(ctx context.Context, trigger string, payload []byte) (*Output, error) {
	start := time.Now()
	metrics.InFlight.WithLabelValues(trigger).Inc()
	defer metrics.InFlight.WithLabelValues(trigger).Dec()

	output, err := h.execute(ctx, payload)

	outcome := "success"
	if err != nil {
		outcome = string(apperrors.CodeOf(err))
	}
	metrics.SyllabiProcessed.WithLabelValues(trigger, outcome).Inc()
	h.obs.RecordJob(ctx, trigger, outcome, time.Since(start))

	return output, err
}

func (h *Handler) execute(ctx context.Context, payload []byte) (*Output, error) {
	input, err := h.validator.Decode(payload)
	if err != nil {
		h.logger.Error("trigger message validation failed", map[string]interface{}{
			"error": err,
		})
		return nil, err
	}
	return h.processor.Process(ctx, input.CourseID.String())
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":   job.Key,
		"courseId": output.CourseID,
	})
}
