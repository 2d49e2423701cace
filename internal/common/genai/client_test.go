package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visa-guru/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func completionBody(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]interface{}{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, serverURL string, maxRetries int) *Client {
	return NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    serverURL + "/v1",
		Model:      "gpt-4",
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
	}, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestGenerate_Success(t *testing.T) {
	var captured struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeJSON(w, http.StatusOK, completionBody("generated text"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	text, err := client.Generate(context.Background(), Request{
		System:      "system instruction",
		Prompt:      "user prompt",
		Temperature: 0.3,
	})

	require.NoError(t, err)
	assert.Equal(t, "generated text", text)
	assert.Equal(t, "gpt-4", captured.Model)
	assert.InDelta(t, 0.3, captured.Temperature, 0.0001)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "system instruction", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "user prompt", captured.Messages[1].Content)
}

// ==========================
// Retry & Error Tests
// ==========================

func TestGenerate_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error": map[string]interface{}{"message": "boom", "type": "server_error"},
			})
			return
		}
		writeJSON(w, http.StatusOK, completionBody("third time"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	text, err := client.Generate(context.Background(), Request{Prompt: "p"})

	require.NoError(t, err)
	assert.Equal(t, "third time", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerate_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]interface{}{"message": "bad key", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)
	_, err := client.Generate(context.Background(), Request{Prompt: "p"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := completionBody("")
		body["choices"] = []map[string]interface{}{}
		writeJSON(w, http.StatusOK, body)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	_, err := client.Generate(context.Background(), Request{Prompt: "p"})

	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestGenerate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Generate(ctx, Request{Prompt: "p"})

	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &openai.APIError{HTTPStatusCode: 500}, true},
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, true},
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401}, false},
		{"bad request", &openai.RequestError{HTTPStatusCode: 400}, false},
		{"network error", errors.New("connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
