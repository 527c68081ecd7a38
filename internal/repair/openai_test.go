package repair

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIOptions{})
	require.Error(t, err)

	o, err := NewOpenAI(OpenAIOptions{APIKey: "sk-test"})
	require.NoError(t, err)
	require.Equal(t, DefaultModel, o.Model())
}

func TestOpenAIComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-test","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"` + "```py\\nx = 1\\n```" + `"}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIOptions{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL + "/", RequestsPerMinute: 600})
	require.NoError(t, err)

	resp, err := o.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	require.Equal(t, "```py\nx = 1\n```", resp)
	require.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Equal(t, "usr", got.Messages[1].Content)
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = o.Complete(context.Background(), "sys", "usr")
	require.Error(t, err)
}

func TestOpenAICompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = o.Complete(context.Background(), "sys", "usr")
	require.Error(t, err)
	require.Contains(t, err.Error(), "OpenAI API call failed")
}

func TestOpenAICompleteCancelledWhileWaiting(t *testing.T) {
	o, err := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1", RequestsPerMinute: 1})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Complete(ctx, "sys", "usr")
	require.Error(t, err)
}
