package gemini

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"mediaqa/internal/core"
)

// embedBatchSize is the largest batch the embedding endpoint accepts.
const embedBatchSize = 100

// Embed returns one vector per input text.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	dims := int32(p.dimensions)
	config := &genai.EmbedContentConfig{OutputDimensionality: &dims}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, &genai.Content{Role: roleUser, Parts: []*genai.Part{{Text: text}}})
		}

		resp, err := p.models.EmbedContent(ctx, p.embeddingModel, contents, config)
		if err != nil {
			return nil, mapError("embed content", err)
		}
		if resp == nil || len(resp.Embeddings) != len(contents) {
			got := 0
			if resp != nil {
				got = len(resp.Embeddings)
			}
			return nil, core.NewPermanentError(providerName, http.StatusBadGateway,
				fmt.Sprintf("expected %d embeddings, got %d", len(contents), got), nil)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (p *Provider) Dimensions() int {
	return p.dimensions
}
