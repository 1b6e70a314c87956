// Package meilisearch implements engine.Engine against a Meilisearch server
// over its REST API.
package meilisearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// Config configures the client.
type Config struct {
	URL    string
	APIKey string
	// Timeout bounds each request. Default 10s.
	Timeout time.Duration
	// RequestsPerSecond throttles requests; 0 means unlimited.
	RequestsPerSecond float64
	PoolSize          int
	// Breaker fails calls fast after repeated connection failures. Optional.
	Breaker *errors.CircuitBreaker
}

// Client is a Meilisearch REST client.
type Client struct {
	baseURL   string
	apiKey    string
	timeout   time.Duration
	client    *http.Client
	transport *http.Transport
	limiter   *rate.Limiter
	breaker   *errors.CircuitBreaker

	mu     sync.Mutex
	closed bool
}

var _ engine.Engine = (*Client)(nil)

// New creates a client. It does not contact the server.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.ConfigError(fmt.Sprintf("invalid meilisearch url %q", cfg.URL), err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     30 * time.Second,
	}

	c := &Client{
		baseURL:   strings.TrimRight(u.String(), "/"),
		apiKey:    cfg.APIKey,
		timeout:   cfg.Timeout,
		client:    &http.Client{Transport: transport},
		transport: transport,
		breaker:   cfg.Breaker,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// apiError is the Meilisearch error body.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
	Link    string `json:"link"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.isClosed() {
		return errors.InternalError("meilisearch client is closed", nil)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	call := func() error { return c.roundTrip(ctx, method, path, query, body, out) }
	if c.breaker == nil {
		return call()
	}
	return c.breaker.Execute(call, isConnectionFailure)
}

func isConnectionFailure(err error) bool {
	return errors.KindOf(err) == errors.KindConnectionFailure
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.InternalError("encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, reader)
	if err != nil {
		return errors.InternalError("build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New(errors.ErrCodeEngineUnreachable,
			fmt.Sprintf("%s %s: %v", method, path, err), err).
			WithDetail("url", c.baseURL).
			WithSuggestion("check that Meilisearch is running at " + c.baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(method, path, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(errors.ErrCodeEngineRejected, fmt.Sprintf("%s %s: decode response", method, path), err)
	}
	return nil
}

func decodeError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var ae apiError
	_ = json.Unmarshal(data, &ae)
	if ae.Message == "" {
		ae.Message = strings.TrimSpace(string(data))
	}
	msg := fmt.Sprintf("%s %s: %d %s", method, path, resp.StatusCode, ae.Message)

	code := errors.ErrCodeEngineRejected
	switch {
	case ae.Code == engine.CodeIndexNotFound:
		code = errors.ErrCodeIndexNotFound
	case ae.Code == engine.CodeDocumentNotFound:
		code = errors.ErrCodeDocNotFound
	case ae.Code == engine.CodeIndexAlreadyExists:
		code = errors.ErrCodeIndexConflict
	case ae.Code == engine.CodeInvalidFilter:
		code = errors.ErrCodeInvalidFilter
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		code = errors.ErrCodeEngineUnreachable
	case resp.StatusCode == http.StatusNotFound:
		code = errors.ErrCodeIndexNotFound
	}

	e := errors.New(code, msg, nil).WithDetail("status", fmt.Sprint(resp.StatusCode))
	if ae.Code != "" {
		e.WithDetail("engine_code", ae.Code)
	}
	return e
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.transport.CloseIdleConnections()
	return nil
}
