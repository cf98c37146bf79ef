package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestGeneratorSummarize(t *testing.T) {
	t.Run("sends the transcript and returns the first choice", func(t *testing.T) {
		var got struct {
			Model       string  `json:"model"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float32 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"id": "chatcmpl-1",
				"object": "chat.completion",
				"created": 1700000000,
				"model": "test-model",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "# Slack Channel Summary"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
			}`))
		}))
		defer server.Close()

		dg := NewDigestGenerator(OpenAIConfig{
			Model:       "test-model",
			MaxTokens:   123,
			Temperature: 0.5,
			BaseURL:     server.URL + "/v1",
		}, "sk-test", zerolog.Nop())

		digest, err := dg.Summarize(context.Background(), "[2024-03-01 09:00:00] <Alice>: ship it")
		require.NoError(t, err)
		assert.Equal(t, "# Slack Channel Summary", digest)

		assert.Equal(t, "test-model", got.Model)
		assert.Equal(t, 123, got.MaxTokens)
		assert.InDelta(t, 0.5, got.Temperature, 0.0001)
		require.Len(t, got.Messages, 1)
		assert.Equal(t, "user", got.Messages[0].Role)
		assert.Contains(t, got.Messages[0].Content, "<Alice>: ship it")
		assert.Contains(t, got.Messages[0].Content, "Open Issues/Items to Address")
	})

	t.Run("api errors are returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
		}))
		defer server.Close()

		dg := NewDigestGenerator(OpenAIConfig{Model: "m", MaxTokens: 10, BaseURL: server.URL + "/v1"}, "sk-bad", zerolog.Nop())
		_, err := dg.Summarize(context.Background(), "transcript")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuth)
		assert.NotContains(t, err.Error(), "sk-bad")
	})

	t.Run("server errors are not auth errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"message": "The server had an error", "type": "server_error"}}`))
		}))
		defer server.Close()

		dg := NewDigestGenerator(OpenAIConfig{Model: "m", MaxTokens: 10, BaseURL: server.URL + "/v1"}, "sk-test", zerolog.Nop())
		_, err := dg.Summarize(context.Background(), "transcript")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAuth)
		assert.Contains(t, err.Error(), "error generating summary")
	})

	t.Run("empty choices are an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "choices": []}`))
		}))
		defer server.Close()

		dg := NewDigestGenerator(OpenAIConfig{Model: "m", MaxTokens: 10, BaseURL: server.URL + "/v1"}, "sk-test", zerolog.Nop())
		_, err := dg.Summarize(context.Background(), "transcript")
		assert.Error(t, err)
	})
}

func TestDigestGeneratorCheckAuth(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  bool
		wantAuth bool
	}{
		{name: "valid key", status: http.StatusOK, body: `{"object": "list", "data": [{"id": "test-model", "object": "model"}]}`},
		{name: "rejected key", status: http.StatusUnauthorized, body: `{"error": {"message": "Incorrect API key provided", "code": "invalid_api_key"}}`, wantErr: true, wantAuth: true},
		{name: "forbidden key", status: http.StatusForbidden, body: `{"error": {"message": "Project does not have access"}}`, wantErr: true, wantAuth: true},
		{name: "unavailable service", status: http.StatusServiceUnavailable, body: `{"error": {"message": "overloaded"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/models", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			dg := NewDigestGenerator(OpenAIConfig{Model: "m", MaxTokens: 10, BaseURL: server.URL + "/v1"}, "sk-test", zerolog.Nop())
			err := dg.CheckAuth(context.Background())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantAuth, errors.Is(err, ErrAuth))
		})
	}
}
