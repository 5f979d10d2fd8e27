// Package websearch queries the DuckDuckGo Instant Answer API.
package websearch

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"mediaqa/internal/cache"
	"mediaqa/internal/core"
	"mediaqa/internal/llmclient"
)

const (
	providerName   = "duckduckgo"
	defaultBaseURL = "https://api.duckduckgo.com"
	// DefaultMaxResults matches the number of results the agent sees per search.
	DefaultMaxResults = 5
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"href"`
	Snippet string `json:"body"`
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      cache.Cache
	Hooks      llmclient.Hooks
	Client     *llmclient.Config
}

// Client searches DuckDuckGo, caching results when a cache is configured.
type Client struct {
	client *llmclient.Client
	cache  cache.Cache
}

// New creates a search client.
func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cfg := llmclient.DefaultConfig(providerName, strings.TrimRight(baseURL, "/"))
	if opts.Client != nil {
		cfg = *opts.Client
		cfg.ProviderName = providerName
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.Hooks = opts.Hooks

	c := &Client{cache: opts.Cache}
	c.client = llmclient.New(opts.HTTPClient, cfg, nil)
	return c
}

// Search returns up to max results for query.
func (c *Client) Search(ctx context.Context, query string, max int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.NewUserInputError("search query is empty", nil)
	}
	if max <= 0 {
		max = DefaultMaxResults
	}

	key := cacheKey(query, max)
	if c.cache != nil {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("search cache read failed", "error", err)
		} else if ok {
			var cached []Result
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	resp, err := c.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/?" + params.Encode(),
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, core.NewPermanentError(providerName, http.StatusBadGateway, "search returned invalid JSON", nil)
	}

	results := parseResults(resp.Body, max)

	if c.cache != nil {
		if data, err := json.Marshal(results); err == nil {
			if err := c.cache.Set(ctx, key, data); err != nil {
				slog.Warn("search cache write failed", "error", err)
			}
		}
	}
	return results, nil
}

func cacheKey(query string, max int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return "ddg:" + strconv.Itoa(max) + ":" + normalized
}

// parseResults flattens an Instant Answer payload: the abstract first,
// then direct results, then related topics including grouped ones.
func parseResults(body []byte, max int) []Result {
	doc := gjson.ParseBytes(body)
	results := make([]Result, 0, max)
	seen := map[string]bool{}

	add := func(title, href, snippet string) bool {
		if snippet == "" || seen[href+snippet] {
			return len(results) < max
		}
		seen[href+snippet] = true
		results = append(results, Result{Title: title, URL: href, Snippet: snippet})
		return len(results) < max
	}

	if abstract := doc.Get("AbstractText").String(); abstract != "" {
		title := doc.Get("Heading").String()
		if src := doc.Get("AbstractSource").String(); src != "" && title == "" {
			title = src
		}
		if !add(title, doc.Get("AbstractURL").String(), abstract) {
			return results
		}
	}
	if answer := doc.Get("Answer").String(); answer != "" {
		if !add("Answer", "", answer) {
			return results
		}
	}
	if def := doc.Get("Definition").String(); def != "" {
		if !add(doc.Get("DefinitionSource").String(), doc.Get("DefinitionURL").String(), def) {
			return results
		}
	}

	topic := func(t gjson.Result) bool {
		text := t.Get("Text").String()
		return add(topicTitle(text), t.Get("FirstURL").String(), text)
	}

	cont := true
	doc.Get("Results").ForEach(func(_, t gjson.Result) bool {
		cont = topic(t)
		return cont
	})
	if !cont {
		return results
	}
	doc.Get("RelatedTopics").ForEach(func(_, t gjson.Result) bool {
		if nested := t.Get("Topics"); nested.IsArray() {
			nested.ForEach(func(_, n gjson.Result) bool {
				cont = topic(n)
				return cont
			})
			return cont
		}
		cont = topic(t)
		return cont
	})
	return results
}

// maxTitleRunes caps titles derived from related-topic text.
const maxTitleRunes = 80

// topicTitle takes the lead phrase of a related-topic text.
func topicTitle(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	if runes := []rune(text); len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes])
	}
	return text
}
