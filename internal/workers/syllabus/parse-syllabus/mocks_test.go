package parsesyllabus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jacobschwantes/syllabase-parser/internal/common/config"
	"github.com/jacobschwantes/syllabase-parser/internal/common/database"
	"github.com/jacobschwantes/syllabase-parser/internal/common/llm"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/mock"
)

// ==========================
// Mock Collaborators
// ==========================

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Fetch(ctx context.Context, table, id string) (*database.Record, error) {
	args := m.Called(ctx, table, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Record), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, table, id string, fields map[string]interface{}) error {
	args := m.Called(ctx, table, id, fields)
	return args.Error(0)
}

type MockModel struct {
	mock.Mock
}

func (m *MockModel) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, courseID string) (*Output, error) {
	args := m.Called(ctx, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Output), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func testConfig() *Config {
	return &Config{
		Deployment:      "syllabus-gpt",
		MaxOutputTokens: 16000,
		Timeout:         5 * time.Second,
	}
}

func testAppConfig(workerTimeout int) *config.Config {
	return &config.Config{
		OpenAI: config.OpenAIConfig{
			Deployment:      "syllabus-gpt",
			MaxOutputTokens: 16000,
		},
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: true, Timeout: workerTimeout},
		},
	}
}

func courseRecord(id string, fields map[string]interface{}) *database.Record {
	return &database.Record{Table: "courses", ID: id, Fields: fields}
}

func modelResponse(content string) *llm.Response {
	return &llm.Response{
		Choices: []llm.Choice{{Content: content, FinishReason: "stop"}},
		Usage:   llm.Usage{PromptTokens: 900, CompletionTokens: 120},
	}
}

// defaultAnswer is a well-formed answer to DefaultSchema.
const defaultAnswer = `[
  ["Algorithms and Data Structures"],
  ["Jane Doe", "jane@example.edu"],
  ["An introduction to the design and analysis of algorithms."],
  ["No late work", "Attendance mandatory"],
  [["homework", 20], ["exams", 80]],
  [["midterm", "2026-10-01"]],
  [],
  [["A", 100, 90], ["B", 89, 80]]
]`

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "syllabus-upload",
		ElementId:          "Activity_ParseSyllabus",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}
