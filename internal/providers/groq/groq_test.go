package groq

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediaqa/internal/core"
	"mediaqa/internal/llmclient"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := llmclient.DefaultConfig("groq", server.URL)
	cfg.MaxRetries = 0
	return New(Options{
		APIKey:  "test-api-key",
		BaseURL: server.URL,
		Client:  &cfg,
	})
}

func TestNew_Defaults(t *testing.T) {
	provider := New(Options{APIKey: "k"})

	if provider.Model() != DefaultModel {
		t.Errorf("Model() = %q, want %q", provider.Model(), DefaultModel)
	}
	if provider.Name() != "groq" {
		t.Errorf("Name() = %q, want groq", provider.Name())
	}
	if provider.client.BaseURL() != defaultBaseURL {
		t.Errorf("BaseURL() = %q, want %q", provider.client.BaseURL(), defaultBaseURL)
	}
}

func TestGenerate_PlainAnswer(t *testing.T) {
	var received core.ChatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Path = %q, want /chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-api-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Request-ID") != "req-1" {
			t.Errorf("X-Request-ID = %q, want req-1", r.Header.Get("X-Request-ID"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "The video is about cats."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 6, "total_tokens": 18}
		}`))
	})

	ctx := core.WithRequestID(context.Background(), "req-1")
	resp, err := provider.Generate(ctx, &core.GenerateRequest{
		System:   "be helpful",
		Messages: []core.Message{{Role: core.RoleUser, Content: "what is cats.mp4 about?"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "The video is about cats." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 18 {
		t.Errorf("TotalTokens = %d, want 18", resp.Usage.TotalTokens)
	}
	if received.Model != DefaultModel {
		t.Errorf("request model = %q, want %q", received.Model, DefaultModel)
	}
	if len(received.Messages) != 2 || received.Messages[0].Role != core.RoleSystem {
		t.Fatalf("expected system + user messages, got %+v", received.Messages)
	}
	if received.ToolChoice != "" {
		t.Errorf("ToolChoice = %q, want empty without tools", received.ToolChoice)
	}
}

func TestGenerate_ToolCalls(t *testing.T) {
	var received core.ChatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		_, _ = w.Write([]byte(`{
			"model": "llama-3.3-70b-versatile",
			"choices": [{"message": {"role": "assistant", "content": "", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "duckduckgo_search", "arguments": "{\"query\":\"cats\"}"}}
			]}, "finish_reason": "tool_calls"}]
		}`))
	})

	resp, err := provider.Generate(context.Background(), &core.GenerateRequest{
		Messages: []core.Message{{Role: core.RoleUser, Content: "search cats"}},
		Tools: []core.ToolDefinition{{
			Type:     "function",
			Function: core.FunctionDefinition{Name: "duckduckgo_search", Parameters: map[string]any{"type": "object"}},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.ToolChoice != "auto" {
		t.Errorf("ToolChoice = %q, want auto", received.ToolChoice)
	}
	if len(received.Tools) != 1 {
		t.Errorf("expected tool definitions to be forwarded, got %d", len(received.Tools))
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "duckduckgo_search" || call.Function.Arguments != `{"query":"cats"}` {
		t.Errorf("unexpected tool call %+v", call)
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantKind   core.ErrorKind
	}{
		{name: "invalid key", statusCode: http.StatusUnauthorized, body: `{"error":{"message":"Invalid API Key"}}`, wantKind: core.KindConfiguration},
		{name: "decommissioned model", statusCode: http.StatusBadRequest, body: `{"error":{"message":"model decommissioned"}}`, wantKind: core.KindPermanentRemote},
		{name: "rate limited", statusCode: http.StatusTooManyRequests, body: `{"error":{"message":"slow down"}}`, wantKind: core.KindTransientRemote},
		{name: "no choices", statusCode: http.StatusOK, body: `{"choices":[]}`, wantKind: core.KindPermanentRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := provider.Generate(context.Background(), &core.GenerateRequest{
				Messages: []core.Message{{Role: core.RoleUser, Content: "hi"}},
			})
			if got := core.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf(err) = %s, want %s (err: %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestGenerate_MissingKey(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	provider := New(Options{BaseURL: server.URL})
	_, err := provider.Generate(context.Background(), &core.GenerateRequest{
		Messages: []core.Message{{Role: core.RoleUser, Content: "hi"}},
	})
	if core.KindOf(err) != core.KindConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
	if called {
		t.Error("request should not be sent without an API key")
	}
}

func TestGenerate_RejectsFiles(t *testing.T) {
	provider := New(Options{APIKey: "k"})
	_, err := provider.Generate(context.Background(), &core.GenerateRequest{
		Messages: []core.Message{{Role: core.RoleUser, Content: "hi"}},
		Files:    []core.RemoteFile{{Name: "files/abc"}},
	})
	if core.KindOf(err) != core.KindUserInput {
		t.Errorf("expected user input error, got %v", err)
	}
}
