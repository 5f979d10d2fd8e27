// Package groq provides Groq chat completions for the agent loop.
package groq

import (
	"context"
	"net/http"
	"strings"

	"mediaqa/internal/core"
	"mediaqa/internal/llmclient"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel replaces mixtral-8x7b-32768, which Groq has decommissioned.
	DefaultModel = "llama-3.3-70b-versatile"
)

// Options configures a Groq provider.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	MaxTokens   *int
	HTTPClient  *http.Client
	Hooks       llmclient.Hooks
	// Client overrides the retry/circuit-breaker defaults when set
	Client *llmclient.Config
}

// Provider implements core.ChatModel for Groq
type Provider struct {
	client      *llmclient.Client
	apiKey      string
	model       string
	temperature *float64
	maxTokens   *int
}

// New creates a new Groq provider.
func New(opts Options) *Provider {
	p := &Provider{
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
	if p.model == "" {
		p.model = DefaultModel
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cfg := llmclient.DefaultConfig("groq", strings.TrimRight(baseURL, "/"))
	if opts.Client != nil {
		cfg = *opts.Client
		cfg.ProviderName = "groq"
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.Hooks = opts.Hooks

	p.client = llmclient.New(opts.HTTPClient, cfg, p.setHeaders)
	return p
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "groq"
}

// Model returns the configured model ID
func (p *Provider) Model() string {
	return p.model
}

// setHeaders sets the required headers for Groq API requests
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	// Forward request ID if present in context
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

// ChatCompletion sends a chat completion request to Groq
func (p *Provider) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, core.NewConfigurationError("GROQ_API_KEY is not set", nil)
	}
	var resp core.ChatResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return &resp, nil
}

// Generate converts a provider-neutral request into a chat completion.
// Groq models are text-only, so attached files are rejected.
func (p *Provider) Generate(ctx context.Context, req *core.GenerateRequest) (*core.GenerateResponse, error) {
	if len(req.Files) > 0 {
		return nil, core.NewUserInputError("groq models cannot read uploaded files", nil)
	}

	messages := make([]core.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Messages...)

	chatReq := &core.ChatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Tools:       req.Tools,
	}
	if len(req.Tools) > 0 {
		chatReq.ToolChoice = "auto"
	}

	resp, err := p.ChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewPermanentError("groq", http.StatusBadGateway, "response contained no choices", nil)
	}

	msg := resp.Choices[0].Message
	return &core.GenerateResponse{
		Model:     resp.Model,
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
		Usage:     resp.Usage,
	}, nil
}
