package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"mediaqa/internal/core"
)

const openAIProviderName = "openai"

// openAIBatchSize keeps request bodies well under the API limit.
const openAIBatchSize = 256

// OpenAIEmbedder embeds text through any OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// OpenAIEmbedderOptions configures an OpenAIEmbedder
type OpenAIEmbedderOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	HTTPClient *http.Client
}

// NewOpenAIEmbedder creates an embedder. The API key is required.
func NewOpenAIEmbedder(opts OpenAIEmbedderOptions) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, core.NewConfigurationError("OPENAI_API_KEY is required for the openai embedder", nil)
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	model := opts.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: opts.Dimensions,
	}, nil
}

// Embed returns one vector per input text, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		end := min(start+openAIBatchSize, len(texts))
		batch := texts[start:end]

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      batch,
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: e.dimensions,
		})
		if err != nil {
			return nil, mapOpenAIError(err)
		}
		if len(resp.Data) != len(batch) {
			return nil, core.NewPermanentError(openAIProviderName, http.StatusBadGateway,
				fmt.Sprintf("expected %d embeddings, got %d", len(batch), len(resp.Data)), nil)
		}

		vectors := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, core.NewPermanentError(openAIProviderName, http.StatusBadGateway,
					fmt.Sprintf("embedding index %d out of range", d.Index), nil)
			}
			vectors[d.Index] = d.Embedding
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// Dimensions returns the configured vector size.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func mapOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return core.ErrorFromStatus(openAIProviderName, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return core.ErrorFromStatus(openAIProviderName, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	return core.NewTransientError(openAIProviderName, http.StatusBadGateway, "embedding request failed: "+err.Error(), err)
}
