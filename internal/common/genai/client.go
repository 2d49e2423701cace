// internal/common/genai/client.go
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	commonhttp "visa-guru/internal/common/http"

	"github.com/sashabaranov/go-openai"
)

var (
	ErrProviderTimeout = errors.New("PROVIDER_TIMEOUT")
	ErrProviderFailed  = errors.New("PROVIDER_ERROR")
)

// Request is one chat completion: a system instruction plus a user prompt.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// TextGenerator is implemented by Client and by test doubles.
type TextGenerator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

type Client struct {
	client     *openai.Client
	model      string
	maxRetries int
	logger     Logger
}

func NewClient(cfg Config, log Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = commonhttp.NewClient("genai", cfg.Timeout)

	model := cfg.Model
	if model == "" {
		model = openai.GPT4
	}

	return &Client{
		client:     openai.NewClientWithConfig(oc),
		model:      model,
		maxRetries: cfg.MaxRetries,
		logger:     log,
	}
}

// Generate returns the first choice's content. Transient failures are retried
// with exponential backoff until maxRetries or the context deadline.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrProviderTimeout, ctx.Err())
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
				return "", fmt.Errorf("%w: provider returned no content", ErrProviderFailed)
			}
			c.logger.Debug("completion received", map[string]interface{}{
				"model":        c.model,
				"attempt":      attempt + 1,
				"finishReason": string(resp.Choices[0].FinishReason),
			})
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrProviderTimeout, ctx.Err())
		}
		if !retryable(err) {
			break
		}
		c.logger.Warn("completion attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %v", ErrProviderTimeout, lastErr)
	}
	return "", fmt.Errorf("%w: %v", ErrProviderFailed, lastErr)
}

// retryable reports whether a provider error may succeed on another attempt.
// Client errors other than rate limiting are final.
func retryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	return status < 400 || status >= 500
}
