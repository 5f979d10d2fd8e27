// Package gemini provides Google Gemini integration: the Files API for
// uploaded videos, multimodal generation with function calling, and embeddings.
package gemini

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"

	"mediaqa/internal/core"
)

const (
	providerName = "gemini"

	// DefaultModel replaces gemini-2.0-flash-exp, which is no longer served.
	DefaultModel = "gemini-2.5-flash"
	// DefaultEmbeddingModel is used by Embed.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions truncates embeddings to a pgvector-friendly size.
	DefaultEmbeddingDimensions = 768
)

// filesService is the subset of genai.Files used by the provider.
type filesService interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

// modelsService is the subset of genai.Models used by the provider.
type modelsService interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Options configures a Gemini provider.
type Options struct {
	APIKey              string
	Model               string
	EmbeddingModel      string
	EmbeddingDimensions int
	Temperature         *float32
	HTTPClient          *http.Client
}

// Provider implements core.ChatModel, core.FileProcessor and core.Embedder for Gemini
type Provider struct {
	files          filesService
	models         modelsService
	model          string
	embeddingModel string
	dimensions     int
	temperature    *float32
}

// New creates a Gemini provider backed by the genai SDK.
func New(ctx context.Context, opts Options) (*Provider, error) {
	if opts.APIKey == "" {
		return nil, core.NewConfigurationError("GOOGLE_API_KEY is not set", nil)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, core.NewConfigurationError("failed to create gemini client: "+err.Error(), err)
	}
	return newWithServices(client.Files, client.Models, opts), nil
}

func newWithServices(files filesService, models modelsService, opts Options) *Provider {
	p := &Provider{
		files:          files,
		models:         models,
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
		dimensions:     opts.EmbeddingDimensions,
		temperature:    opts.Temperature,
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.embeddingModel == "" {
		p.embeddingModel = DefaultEmbeddingModel
	}
	if p.dimensions <= 0 {
		p.dimensions = DefaultEmbeddingDimensions
	}
	return p
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Model returns the configured generation model ID
func (p *Provider) Model() string {
	return p.model
}

// mapError converts SDK errors into the core taxonomy.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Status
		}
		return core.ErrorFromStatus(providerName, apiErr.Code, op+": "+msg, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return core.ErrorFromStatus(providerName, apiErrPtr.Code, op+": "+apiErrPtr.Message, err)
	}
	return core.NewTransientError(providerName, http.StatusBadGateway, op+": "+err.Error(), err)
}
