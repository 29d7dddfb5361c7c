// internal/workers/syllabus/parse-syllabus/service.go
package parsesyllabus

import (
	"context"
	"strings"
	"time"

	"github.com/jacobschwantes/syllabase-parser/internal/common/database"
	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/llm"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"
	"github.com/jacobschwantes/syllabase-parser/internal/common/metrics"
	"github.com/jacobschwantes/syllabase-parser/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	StageFetch     = "fetch"
	StagePrompt    = "prompt"
	StageComplete  = "complete"
	StageParse     = "parse"
	StageReconcile = "reconcile"
)

// ModelClient runs one chat completion.
type ModelClient interface {
	Complete(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Service runs the extraction pipeline for one course at a time. It holds no
// per-course state and is safe for concurrent use.
type Service struct {
	config *Config
	store  Store
	model  ModelClient
	schema Schema
	tracer trace.Tracer
	logger logger.Logger
}

func NewService(cfg *Config, store Store, model ModelClient, schema Schema, log logger.Logger) (*Service, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		config: cfg,
		store:  store,
		model:  model,
		schema: schema,
		tracer: otel.Tracer("parse-syllabus"),
		logger: log,
	}, nil
}

// Process fetches the course, asks the model every schema question, and
// writes the answers back. Any stage failure aborts the run and is returned
// unchanged.
func (s *Service) Process(ctx context.Context, courseID string) (*Output, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.WithFields(map[string]interface{}{
		"courseId": courseID,
		"runId":    runID,
	})

	ctx, span := s.tracer.Start(ctx, "parse-syllabus.process", trace.WithAttributes(
		attribute.String("course.id", courseID),
		attribute.String("run.id", runID),
	))
	defer span.End()

	if courseID == "" {
		err := apperrors.NewInvalidInputError("courseId is empty", nil)
		s.fail(ctx, log, StageFetch, err)
		return nil, err
	}

	log.Info("processing course", nil)

	var (
		course  *database.Record
		rawText string
		req     *llm.Request
		resp    *llm.Response
		answers []interface{}
		plan    *Plan
	)

	err := s.runStage(ctx, log, StageFetch, func(ctx context.Context) error {
		var err error
		course, err = s.store.Fetch(ctx, models.CourseTable, courseID)
		if err != nil {
			return err
		}
		text, ok := course.Text(models.RawSyllabusColumn)
		if !ok || strings.TrimSpace(text) == "" {
			return apperrors.NewInvalidInputError("invalid course document, no raw syllabus text found", nil)
		}
		rawText = text
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.runStage(ctx, log, StagePrompt, func(context.Context) error {
		var err error
		req, err = BuildRequest(rawText, s.schema, s.config)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.runStage(ctx, log, StageComplete, func(ctx context.Context) error {
		var err error
		resp, err = s.model.Complete(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.ModelTokens.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.ModelTokens.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))

	err = s.runStage(ctx, log, StageParse, func(context.Context) error {
		if len(resp.Choices) == 0 {
			return apperrors.NewMalformedResponseError("model returned no choices", nil)
		}
		content := resp.Choices[0].Content
		log.Debug("model answer", map[string]interface{}{
			"content":      content,
			"finishReason": resp.Choices[0].FinishReason,
		})
		var err error
		answers, err = ParseResponse(content, s.schema)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.runStage(ctx, log, StageReconcile, func(ctx context.Context) error {
		plan = Reconcile(answers, s.schema, course)
		return Apply(ctx, s.store, plan, log)
	})
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	log.Info("syllabus parsing completed", map[string]interface{}{
		"foreignUpdates": len(plan.ForeignUpdates),
		"fields":         len(plan.Patch),
		"seconds":        elapsed.Seconds(),
	})

	skipped := make([]string, 0, len(plan.Skipped))
	for _, fu := range plan.Skipped {
		skipped = append(skipped, fu.Field)
	}

	return &Output{
		CourseID:       courseID,
		Status:         models.StatusActive,
		RunID:          runID,
		ForeignUpdates: len(plan.ForeignUpdates),
		SkippedFields:  skipped,
		DurationMs:     elapsed.Milliseconds(),
	}, nil
}

// runStage runs fn under a child span. Successful stages are timed; failed
// ones are logged and counted.
func (s *Service) runStage(ctx context.Context, log logger.Logger, stage string, fn func(ctx context.Context) error) error {
	stageCtx, span := s.tracer.Start(ctx, "parse-syllabus."+stage)
	defer span.End()

	start := time.Now()
	if err := fn(stageCtx); err != nil {
		s.fail(stageCtx, log, stage, err)
		trace.SpanFromContext(ctx).SetStatus(codes.Error, stage)
		return err
	}
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return nil
}

func (s *Service) fail(ctx context.Context, log logger.Logger, stage string, err error) {
	log.Error("syllabus parsing failed", map[string]interface{}{
		"stage": stage,
		"error": err,
	})
	code := string(apperrors.CodeOf(err))
	metrics.SyllabusFailures.WithLabelValues(stage, code).Inc()

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, code)
}
