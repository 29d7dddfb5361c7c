// internal/common/llm/client.go
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/jacobschwantes/syllabase-parser/internal/common/config"
	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"

	openai "github.com/sashabaranov/go-openai"
)

const (
	RoleSystem = openai.ChatMessageRoleSystem
	RoleUser   = openai.ChatMessageRoleUser
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral chat completion request. Deployment names the
// Azure deployment (or the model for the public API).
type Request struct {
	Deployment      string    `json:"deployment"`
	Messages        []Message `json:"messages"`
	TopP            float32   `json:"topP"`
	MaxOutputTokens int       `json:"maxOutputTokens"`
	Stop            []string  `json:"stop,omitempty"`
}

type Choice struct {
	Content      string `json:"content"`
	FinishReason string `json:"finishReason"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

type Response struct {
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Client calls chat completions through go-openai. It makes exactly one
// attempt per call.
type Client struct {
	api     *openai.Client
	timeout time.Duration
	logger  logger.Logger
}

func NewClient(cfg config.OpenAIConfig, log logger.Logger) (*Client, error) {
	var clientCfg openai.ClientConfig
	switch cfg.Provider {
	case "azure":
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		// Deployment ids are used verbatim.
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	case "openai", "":
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientCfg.BaseURL = cfg.Endpoint
		}
	default:
		return nil, fmt.Errorf("unsupported openai provider %q", cfg.Provider)
	}
	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		timeout: config.GetDuration(cfg.Timeout),
		logger:  log.WithFields(map[string]interface{}{"component": "llm", "provider": cfg.Provider}),
	}, nil
}

// Complete sends the request and returns every choice. Transport and
// provider errors come back as ModelFailure.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     req.Deployment,
		Messages:  messages,
		TopP:      req.TopP,
		MaxTokens: req.MaxOutputTokens,
		Stop:      req.Stop,
	})
	if err != nil {
		c.logger.Error("chat completion failed", map[string]interface{}{
			"deployment": req.Deployment,
			"error":      err.Error(),
		})
		return nil, apperrors.NewModelFailureError(req.Deployment, err)
	}

	out := &Response{
		Choices: make([]Choice, len(resp.Choices)),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}
	for i, ch := range resp.Choices {
		out.Choices[i] = Choice{Content: ch.Message.Content, FinishReason: string(ch.FinishReason)}
	}

	c.logger.Info("chat completion received", map[string]interface{}{
		"deployment":       req.Deployment,
		"choices":          len(out.Choices),
		"promptTokens":     out.Usage.PromptTokens,
		"completionTokens": out.Usage.CompletionTokens,
		"durationMs":       time.Since(start).Milliseconds(),
	})
	return out, nil
}
