// Package llmclient is the retrying HTTP client shared by the Groq provider,
// the web search backend and the knowledge fetcher. Failed attempts are
// classified into the core error taxonomy, transient ones are retried with
// exponential backoff and a circuit breaker stops hammering a dead upstream.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"mediaqa/internal/core"
	"mediaqa/internal/httpclient"
)

// Config holds configuration for the client
type Config struct {
	// ProviderName identifies the upstream in errors and metrics
	ProviderName string

	// BaseURL is prepended to every request endpoint
	BaseURL string

	MaxRetries     int           // retries after the first attempt
	InitialBackoff time.Duration // wait before the first retry
	MaxBackoff     time.Duration // cap for backoff and Retry-After
	BackoffFactor  float64

	// CircuitBreaker is disabled when nil
	CircuitBreaker *CircuitBreakerConfig

	// Hooks observe every attempt; nil disables them
	Hooks Hooks
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the circuit
	SuccessThreshold int           // half-open successes that close it again
	Timeout          time.Duration // how long the circuit stays open
}

// Hooks receives a callback per HTTP attempt.
type Hooks interface {
	ObserveRequest(provider, method, endpoint string, statusCode int, duration time.Duration)
}

// DefaultConfig returns default client configuration
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName:   providerName,
		BaseURL:        baseURL,
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2,
		CircuitBreaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

// HeaderSetter adds per-upstream headers such as credentials.
type HeaderSetter func(req *http.Request)

// Client sends requests to one upstream
type Client struct {
	httpClient *http.Client
	config     Config
	setHeaders HeaderSetter
	breaker    *circuitBreaker
}

// New creates a client. A nil httpClient gets the shared tuned default.
func New(httpClient *http.Client, config Config, setHeaders HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = httpclient.NewDefaultHTTPClient()
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 2
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}

	c := &Client{httpClient: httpClient, config: config, setHeaders: setHeaders}
	if cb := config.CircuitBreaker; cb != nil {
		c.breaker = newCircuitBreaker(cb.FailureThreshold, cb.SuccessThreshold, cb.Timeout)
	}
	return c
}

// BaseURL returns the URL requests are resolved against
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request describes one call. Body is JSON encoded when set.
type Request struct {
	Method   string
	Endpoint string
	Body     any
	Headers  map[string]string
}

// Response is a successful (2xx) upstream answer
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do sends req and decodes the JSON answer into result (skipped when nil).
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return core.NewPermanentError(c.config.ProviderName, http.StatusBadGateway, "failed to unmarshal response: "+err.Error(), err)
	}
	return nil
}

// DoRaw sends req with retries and returns the raw 2xx response.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, core.NewTransientError(c.config.ProviderName, http.StatusServiceUnavailable,
			"circuit breaker is open - upstream temporarily unavailable", nil)
	}

	var (
		lastErr    error
		retryAfter time.Duration
	)
	for attempt := 0; attempt <= max(c.config.MaxRetries, 0); attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.wait(attempt, retryAfter)); err != nil {
				return nil, err
			}
		}

		resp, err := c.send(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.recordFailure()
			lastErr = err
			retryAfter = 0
			continue
		}

		switch {
		case retryableStatus[resp.StatusCode]:
			c.recordFailure()
			lastErr = core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			if resp.StatusCode >= 500 {
				c.recordFailure()
			}
			return nil, core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
		default:
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			return resp, nil
		}
	}
	return nil, lastErr
}

// send performs a single attempt
func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req, 0, start)
		return nil, core.NewTransientError(c.config.ProviderName, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	c.observe(req, resp.StatusCode, start)
	if err != nil {
		return nil, core.NewTransientError(c.config.ProviderName, http.StatusBadGateway, "failed to read response: "+err.Error(), err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewUserInputError("failed to marshal request", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.config.BaseURL+req.Endpoint, body)
	if err != nil {
		return nil, core.NewUserInputError("failed to create request", err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.setHeaders != nil {
		c.setHeaders(httpReq)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	return httpReq, nil
}

func (c *Client) observe(req Request, status int, start time.Time) {
	if c.config.Hooks != nil {
		c.config.Hooks.ObserveRequest(c.config.ProviderName, req.Method, req.Endpoint, status, time.Since(start))
	}
}

func (c *Client) recordFailure() {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
}

// wait returns the pause before retry number attempt. A server-sent
// Retry-After wins over a shorter computed backoff; both are capped.
func (c *Client) wait(attempt int, retryAfter time.Duration) time.Duration {
	d := c.calculateBackoff(attempt)
	if retryAfter > d {
		d = retryAfter
	}
	return min(d, c.config.MaxBackoff)
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffFactor, float64(attempt-1))
	return time.Duration(min(backoff, float64(c.config.MaxBackoff)))
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// parseRetryAfter understands the delay-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case circuitClosed:
		return "closed"
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// circuitBreaker opens after consecutive failures and lets a trial request
// through once the open timeout has passed.
type circuitBreaker struct {
	mu               sync.Mutex
	state            circuitState
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	openedAt         time.Time
}

func newCircuitBreaker(failureThreshold, successThreshold int, timeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: max(failureThreshold, 1),
		successThreshold: max(successThreshold, 1),
		timeout:          timeout,
	}
}

func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != circuitOpen {
		return true
	}
	if time.Since(cb.openedAt) <= cb.timeout {
		return false
	}
	cb.state = circuitHalfOpen
	cb.successes = 0
	return true
}

func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == circuitHalfOpen {
		cb.successes++
		if cb.successes < cb.successThreshold {
			return
		}
		cb.state = circuitClosed
	}
	cb.failures = 0
}

func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == circuitHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = circuitOpen
		cb.openedAt = time.Now()
		cb.successes = 0
	}
}

func (cb *circuitBreaker) State() circuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
