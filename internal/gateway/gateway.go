package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "catalog-admin"
	maxErrorBody     = 64 * 1024
)

// TokenSource reports the bearer token to attach, if any
type TokenSource interface {
	Token() (string, bool)
}

// Gateway issues calls against the catalog API. It attaches the bearer
// token when the token source has one and routes every 401 to the
// unauthorized handler before returning. It never retries.
type Gateway struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	onUnauthorized func(rejected string)
	userAgent      string
}

type Option func(*Gateway)

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

func WithTokenSource(ts TokenSource) Option {
	return func(g *Gateway) { g.tokens = ts }
}

// WithUnauthorizedHandler sets the hook run whenever a call comes back 401.
// The hook receives the bearer token the failed request carried, empty when
// none was sent.
func WithUnauthorizedHandler(fn func(rejected string)) Option {
	return func(g *Gateway) { g.onUnauthorized = fn }
}

func WithUserAgent(ua string) Option {
	return func(g *Gateway) { g.userAgent = ua }
}

// New creates a gateway for the API rooted at baseURL, e.g. http://localhost:8000/api
func New(baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{
			Timeout: defaultTimeout,
		}
	}
	return g
}

func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Get issues a GET; empty query values are dropped
func (g *Gateway) Get(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		cleaned := url.Values{}
		for k, vs := range query {
			for _, v := range vs {
				if v != "" {
					cleaned.Add(k, v)
				}
			}
		}
		if encoded := cleaned.Encode(); encoded != "" {
			path += "?" + encoded
		}
	}
	return g.do(ctx, http.MethodGet, path, nil, "", out)
}

func (g *Gateway) PostJSON(ctx context.Context, path string, in, out any) error {
	return g.sendJSON(ctx, http.MethodPost, path, in, out)
}

func (g *Gateway) PutJSON(ctx context.Context, path string, in, out any) error {
	return g.sendJSON(ctx, http.MethodPut, path, in, out)
}

func (g *Gateway) PostMultipart(ctx context.Context, path string, form *Form, out any) error {
	return g.sendForm(ctx, http.MethodPost, path, form, out)
}

func (g *Gateway) PutMultipart(ctx context.Context, path string, form *Form, out any) error {
	return g.sendForm(ctx, http.MethodPut, path, form, out)
}

func (g *Gateway) Delete(ctx context.Context, path string, out any) error {
	return g.do(ctx, http.MethodDelete, path, nil, "", out)
}

// Download fetches an absolute URL such as a static product image. No
// token is attached since static assets are served without authentication.
func (g *Gateway) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Method: req.Method, Path: rawURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, "", classify(req.Method, rawURL, resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Method: req.Method, Path: rawURL, Cause: err}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (g *Gateway) sendJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return g.do(ctx, method, path, bytes.NewReader(body), "application/json", out)
}

func (g *Gateway) sendForm(ctx context.Context, method, path string, form *Form, out any) error {
	body, contentType, err := form.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode form: %w", err)
	}
	return g.do(ctx, method, path, body, contentType, out)
}

func (g *Gateway) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	requestID := uuid.NewString()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	var sent string
	if g.tokens != nil {
		if token, ok := g.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
			sent = token
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		slog.Debug("Request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return &Error{Kind: KindNetwork, Method: method, Path: path, Cause: err}
	}
	defer resp.Body.Close()

	slog.Debug("Request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		callErr := classify(method, path, resp.StatusCode, errBody)
		var authErr *AuthError
		if errors.As(callErr, &authErr) && g.onUnauthorized != nil {
			slog.Warn("Token rejected by API, ending session", "method", method, "path", path, "request_id", requestID)
			g.onUnauthorized(sent)
		}
		return callErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Method: method, Path: path, Cause: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response body from %s %s: %w", method, path, err)
	}
	return nil
}

func classify(method, path string, status int, body []byte) error {
	detail := parseDetail(body)
	switch {
	case status == http.StatusUnauthorized:
		msg := "Session expired, please log in again"
		return &AuthError{
			Message: msg,
			Cause:   &Error{Kind: KindClient, Status: status, Method: method, Path: path, Detail: detail},
		}
	case status >= 400 && status < 500:
		return &Error{Kind: KindClient, Status: status, Method: method, Path: path, Detail: detail}
	default:
		return &Error{Kind: KindServer, Status: status, Method: method, Path: path}
	}
}
