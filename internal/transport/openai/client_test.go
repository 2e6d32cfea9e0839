package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/costgate/internal/domain"
	"github.com/kailas-cloud/costgate/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterGovernanceMetrics()
	os.Exit(m.Run())
}

const chatResponse = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "gpt-4o-mini",
	"choices": [
		{"index": 0, "message": {"role": "assistant", "content": "done"}, "finish_reason": "stop"}
	],
	"usage": {"prompt_tokens": 1200, "completion_tokens": 800, "total_tokens": 2000}
}`

func TestComplete_ReturnsUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatResponse))
	}))
	defer server.Close()

	c := NewClient(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Logger:  zap.NewNop(),
	})

	got, err := c.Complete(context.Background(), "correct this essay")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "done" {
		t.Errorf("expected text %q, got %q", "done", got.Text)
	}
	if got.TokensIn != 1200 || got.TokensOut != 800 {
		t.Errorf("unexpected usage: in=%d out=%d", got.TokensIn, got.TokensOut)
	}
	if got.Duration <= 0 {
		t.Error("expected positive duration")
	}
}

func TestComplete_APIErrorWrapsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "upstream exploded"}`))
	}))
	defer server.Close()

	c := NewClient(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Logger:  zap.NewNop(),
	})

	_, err := c.Complete(context.Background(), "x")
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[],"usage":{}}`))
	}))
	defer server.Close()

	c := NewClient(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Logger:  zap.NewNop(),
	})

	_, err := c.Complete(context.Background(), "x")
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError for empty choices, got %v", err)
	}
}
