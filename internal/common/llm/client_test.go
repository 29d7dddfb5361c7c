// internal/common/llm/client_test.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jacobschwantes/syllabase-parser/internal/common/config"
	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger/loggertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "choices": [
    {"index": 0, "message": {"role": "assistant", "content": "[[\"Algorithms 101\"]]"}, "finish_reason": "stop"}
  ],
  "usage": {"prompt_tokens": 120, "completion_tokens": 8, "total_tokens": 128}
}`

func testRequest() *Request {
	return &Request{
		Deployment: "syllabus-gpt",
		Messages: []Message{
			{Role: RoleUser, Content: `Syllabus: "x". Questions: "y"`},
			{Role: RoleSystem, Content: "You are an AI syllabus parser."},
		},
		TopP:            1,
		MaxOutputTokens: 16000,
	}
}

func TestClient_Complete_OpenAI(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	client, err := NewClient(config.OpenAIConfig{
		Provider: "openai",
		Endpoint: srv.URL + "/v1",
		APIKey:   "sk-test",
		Timeout:  5000,
	}, loggertest.New(t))
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, `[["Algorithms 101"]]`, resp.Choices[0].Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 120, resp.Usage.PromptTokens)

	assert.Equal(t, "syllabus-gpt", got["model"])
	assert.Equal(t, float64(1), got["top_p"])
	assert.Equal(t, float64(16000), got["max_tokens"])
	_, hasStop := got["stop"]
	assert.False(t, hasStop)

	msgs, ok := got["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, "system", msgs[1].(map[string]interface{})["role"])
}

func TestClient_Complete_AzureDeploymentRouting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/openai/deployments/syllabus-gpt/chat/completions"), r.URL.Path)
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	client, err := NewClient(config.OpenAIConfig{
		Provider:   "azure",
		Endpoint:   srv.URL,
		APIKey:     "azure-key",
		APIVersion: "2024-02-01",
	}, loggertest.New(t))
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, resp.Choices, 1)
}

func TestClient_Complete_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(config.OpenAIConfig{
		Provider: "openai",
		Endpoint: srv.URL + "/v1",
		APIKey:   "sk-test",
	}, loggertest.New(t))
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), testRequest())
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrModelFailure))
	assert.Contains(t, err.Error(), "deployment: syllabus-gpt")
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(config.OpenAIConfig{Provider: "bedrock"}, logger.NewNoOpLogger())
	assert.Error(t, err)
}
