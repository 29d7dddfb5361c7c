package parsesyllabus

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger/loggertest"
	"github.com/jacobschwantes/syllabase-parser/internal/common/observability"
	"github.com/jacobschwantes/syllabase-parser/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *MockProcessor) {
	t.Helper()
	validator, err := NewInputValidator(registry.Default())
	require.NoError(t, err)

	processor := new(MockProcessor)
	h := NewHandler(testConfig(), processor, validator, &observability.Observability{}, loggertest.New(t))
	return h, processor
}

func TestHandler_Execute_JobVariables(t *testing.T) {
	h, processor := newTestHandler(t)

	job := createMockJob(101, map[string]interface{}{
		"courseId":   42,
		"uploadedBy": "profile-1",
	})

	processor.On("Process", mock.Anything, "42").
		Return(&Output{CourseID: "42", Status: "active"}, nil).Once()

	out, err := h.Execute(context.Background(), TriggerZeebe, []byte(job.Variables))
	require.NoError(t, err)
	assert.Equal(t, "active", out.Status)
	processor.AssertExpectations(t)
}

func TestHandler_HandleMessage(t *testing.T) {
	h, processor := newTestHandler(t)

	processor.On("Process", mock.Anything, "7").
		Return(&Output{CourseID: "7", Status: "active"}, nil).Once()

	assert.NoError(t, h.HandleMessage(context.Background(), []byte(`{"courseId":" 7 "}`)))
	processor.AssertExpectations(t)
}

func TestHandler_HandleMessage_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty body", payload: ""},
		{name: "not json", payload: "courseId=7"},
		{name: "not an object", payload: `"7"`},
		{name: "missing courseId", payload: `{"id":7}`},
		{name: "empty courseId", payload: `{"courseId":""}`},
		{name: "blank courseId", payload: `{"courseId":"   "}`},
		{name: "negative courseId", payload: `{"courseId":-1}`},
		{name: "boolean courseId", payload: `{"courseId":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, processor := newTestHandler(t)

			err := h.HandleMessage(context.Background(), []byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), err.Error())
			processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_HandleMessage_PropagatesProcessError(t *testing.T) {
	h, processor := newTestHandler(t)

	processor.On("Process", mock.Anything, "7").
		Return(nil, apperrors.NewMalformedResponseError("expected 8 answers, got 1", nil))

	err := h.HandleMessage(context.Background(), []byte(`{"courseId":"7"}`))
	assert.True(t, errors.Is(err, apperrors.ErrMalformedResponse))
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(testAppConfig(0))
	assert.Equal(t, "syllabus-gpt", cfg.Deployment)
	assert.Equal(t, 16000, cfg.MaxOutputTokens)
	assert.Equal(t, "3m0s", cfg.Timeout.String())

	cfg = LoadConfig(testAppConfig(60000))
	assert.Equal(t, "1m0s", cfg.Timeout.String())
}
