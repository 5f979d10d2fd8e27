package knowledge

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"

	"mediaqa/internal/core"
	"mediaqa/internal/llmclient"
)

const fetcherName = "pdf-fetcher"

var pdfMagic = []byte("%PDF-")

// Fetcher downloads a document by URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// FetcherOptions configures an HTTPFetcher
type FetcherOptions struct {
	HTTPClient *http.Client
	Hooks      llmclient.Hooks
	// Client overrides retry and circuit breaker settings
	Client *llmclient.Config
}

// HTTPFetcher downloads PDFs through the retrying HTTP client.
type HTTPFetcher struct {
	client *llmclient.Client
}

// NewHTTPFetcher creates a fetcher. URLs are absolute, so the client has no base URL.
func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	cfg := llmclient.DefaultConfig(fetcherName, "")
	if opts.Client != nil {
		cfg = *opts.Client
		cfg.ProviderName = fetcherName
		cfg.BaseURL = ""
	}
	cfg.Hooks = opts.Hooks

	return &HTTPFetcher{client: llmclient.New(opts.HTTPClient, cfg, nil)}
}

// Fetch downloads rawURL and returns the decoded PDF bytes.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, core.NewUserInputError(fmt.Sprintf("invalid knowledge URL %q", rawURL), err)
	}

	resp, err := f.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: u.String(),
		Headers: map[string]string{
			"Accept":          "application/pdf,*/*;q=0.8",
			"Accept-Encoding": "br, gzip",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	body, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, core.NewPermanentError(fetcherName, http.StatusBadGateway,
			fmt.Sprintf("failed to decode %s", rawURL), err)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(body, "\r\n\t "), pdfMagic) {
		return nil, core.NewPermanentError(fetcherName, http.StatusBadGateway,
			fmt.Sprintf("%s is not a PDF document (content type %q)", rawURL, resp.Header.Get("Content-Type")), nil)
	}
	return body, nil
}

// decodeBody undoes the Content-Encoding the server applied.
func decodeBody(encoding string, body []byte) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
	return io.ReadAll(r)
}
