// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobschwantes/syllabase-parser/internal/common/config"
	"github.com/jacobschwantes/syllabase-parser/internal/common/database"
	"github.com/jacobschwantes/syllabase-parser/internal/common/llm"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger/loggertest"
	"github.com/jacobschwantes/syllabase-parser/internal/common/queue"
	"github.com/jacobschwantes/syllabase-parser/pkg/registry"

	ps "github.com/jacobschwantes/syllabase-parser/internal/workers/syllabus/parse-syllabus"
)

const modelAnswer = `[
  ["Algorithms and Data Structures"],
  ["Jane Doe", "jane@example.edu"],
  ["An introduction to the design and analysis of algorithms."],
  ["No late work", "Attendance mandatory"],
  [["homework", 20], ["exams", 80]],
  [["midterm", "2026-10-01"]],
  [],
  [["A", 100, 90], ["B", 89, 80]]
]`

// pipeline wires the real gateway, model client, handler and queue consumer
// against sqlmock, a fake chat completions endpoint and miniredis.
type pipeline struct {
	mock       sqlmock.Sqlmock
	redis      *miniredis.Miniredis
	client     *redis.Client
	consumer   *queue.Consumer
	queueCfg   config.QueueConfig
	modelCalls *int32
}

func newPipeline(t *testing.T, answer string) *pipeline {
	t.Helper()
	log := loggertest.New(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Messages) != 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if body.Messages[0].Role != "user" || !strings.HasPrefix(body.Messages[0].Content, "Syllabus: ") {
			http.Error(w, "unexpected prompt", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-e2e",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   body.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]interface{}{"role": "assistant", "content": answer},
				"finish_reason": "stop",
			}},
			"usage": map[string]interface{}{
				"prompt_tokens":     900,
				"completion_tokens": 120,
				"total_tokens":      1020,
			},
		})
	}))
	t.Cleanup(server.Close)

	model, err := llm.NewClient(config.OpenAIConfig{
		Provider:   "openai",
		Endpoint:   server.URL + "/v1",
		APIKey:     "test-key",
		Deployment: "syllabus-gpt",
		Timeout:    5000,
	}, log)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	validator, err := ps.NewInputValidator(registry.Default())
	require.NoError(t, err)

	workerCfg := &ps.Config{Deployment: "syllabus-gpt", MaxOutputTokens: 16000, Timeout: 5 * time.Second}
	service, err := ps.NewService(workerCfg, database.NewGateway(db, log), model, ps.DefaultSchema, log)
	require.NoError(t, err)
	handler := ps.NewHandler(workerCfg, service, validator, nil, log)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	queueCfg := config.QueueConfig{
		Enabled:       true,
		Name:          "syllabus-parser-queue",
		PoisonSuffix:  "-poison",
		BlockTimeout:  1000,
		Concurrency:   1,
		MaxDeliveries: 2,
	}

	return &pipeline{
		mock:       mock,
		redis:      mr,
		client:     client,
		consumer:   queue.NewConsumer(client, queueCfg, handler.HandleMessage, log),
		queueCfg:   queueCfg,
		modelCalls: &calls,
	}
}

func (p *pipeline) enqueue(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, queue.Enqueue(context.Background(), p.client, p.queueCfg.Name, []byte(body)))
}

// runUntil runs the consumer until cond holds, then stops it.
func (p *pipeline) runUntil(t *testing.T, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.consumer.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, cond, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func (p *pipeline) poisoned() []string {
	items, _ := p.redis.List(p.queueCfg.PoisonQueue())
	return items
}

func expectCourse(mock sqlmock.Sqlmock, id string, raw interface{}, instructor interface{}) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "courses" WHERE id = $1`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "raw_syllabus_text", "instructor", "status"}).
			AddRow(id, raw, instructor, "pending"))
}

func TestQueueToDatabase_ParsesSyllabus(t *testing.T) {
	p := newPipeline(t, modelAnswer)

	expectCourse(p.mock, "42", []byte("CS 201 Algorithms. Instructor: Jane Doe (jane@example.edu)"), int64(7))
	p.mock.ExpectExec(regexp.QuoteMeta(`UPDATE "staff" SET "email" = $1, "name" = $2 WHERE id = $3`)).
		WithArgs("jane@example.edu", "Jane Doe", "7").
		WillReturnResult(sqlmock.NewResult(0, 1))
	p.mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE "courses" SET "course_materials" = $1, "description" = $2, "full_title" = $3, `+
			`"grade_categories" = $4, "grade_cutoffs" = $5, "important_dates" = $6, "policies" = $7, "status" = $8 WHERE id = $9`)).
		WithArgs(
			sqlmock.AnyArg(),
			"An introduction to the design and analysis of algorithms.",
			"Algorithms and Data Structures",
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			"active",
			"42",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p.enqueue(t, `{"courseId":42}`)
	p.runUntil(t, func() bool { return p.mock.ExpectationsWereMet() == nil })

	assert.Equal(t, int32(1), atomic.LoadInt32(p.modelCalls))
	assert.Empty(t, p.poisoned())
	assert.False(t, p.redis.Exists(p.queueCfg.Name))
}

func TestQueueToDatabase_MissingStaffRowStillActivatesCourse(t *testing.T) {
	p := newPipeline(t, modelAnswer)

	expectCourse(p.mock, "42", "CS 201 Algorithms", int64(404))
	p.mock.ExpectExec(regexp.QuoteMeta(`UPDATE "staff" SET "email" = $1, "name" = $2 WHERE id = $3`)).
		WithArgs("jane@example.edu", "Jane Doe", "404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	p.mock.ExpectExec(`UPDATE "courses" SET .* "status" = \$8 WHERE id = \$9`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p.enqueue(t, `{"courseId":"42"}`)
	p.runUntil(t, func() bool { return p.mock.ExpectationsWereMet() == nil })

	assert.Empty(t, p.poisoned())
	assert.False(t, p.redis.Exists(p.queueCfg.AttemptsKey()))
}

func TestQueueToDatabase_MalformedAnswerIsPoisoned(t *testing.T) {
	p := newPipeline(t, "I could not find a syllabus in that text.")

	expectCourse(p.mock, "42", "CS 201 Algorithms", int64(7))

	p.enqueue(t, `{"courseId":"42"}`)
	p.runUntil(t, func() bool { return len(p.poisoned()) == 1 })

	// No update was attempted; sqlmock fails unexpected statements.
	assert.NoError(t, p.mock.ExpectationsWereMet())
	assert.Equal(t, int32(1), atomic.LoadInt32(p.modelCalls))
	assert.Equal(t, []string{`{"courseId":"42"}`}, p.poisoned())
}

func TestQueueToDatabase_EmptyDocumentSkipsModel(t *testing.T) {
	p := newPipeline(t, modelAnswer)

	expectCourse(p.mock, "9", "   ", nil)

	p.enqueue(t, `{"courseId":"9"}`)
	p.runUntil(t, func() bool { return len(p.poisoned()) == 1 })

	assert.NoError(t, p.mock.ExpectationsWereMet())
	assert.Equal(t, int32(0), atomic.LoadInt32(p.modelCalls))
}

func TestQueueToDatabase_InvalidMessageNeverTouchesDatabase(t *testing.T) {
	p := newPipeline(t, modelAnswer)

	p.enqueue(t, `{"course":"42"}`)
	p.runUntil(t, func() bool { return len(p.poisoned()) == 1 })

	assert.NoError(t, p.mock.ExpectationsWereMet())
	assert.Equal(t, int32(0), atomic.LoadInt32(p.modelCalls))
}
