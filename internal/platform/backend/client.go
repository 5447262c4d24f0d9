// Package backend is the typed HTTP client for the grocery operations REST API.
//
// Every endpoint answers with the envelope {success, data} or {success, error}.
// Authenticated calls carry a bearer token taken from the TokenStore bound to the
// request context. A 401 triggers a single refresh attempt; when that fails the
// caller gets ErrSessionExpired and is expected to log the user out.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	refreshPath   = "/api/auth/refresh"
	maxBodyLength = 8 << 20
)

// Caller executes backend requests. Services depend on this instead of *Client.
type Caller interface {
	Do(ctx context.Context, req Request, out any) error
}

// Observer receives one notification per backend round trip.
type Observer interface {
	ObserveBackendCall(method, endpoint string, status int, elapsed time.Duration)
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON encoded unless Raw is set.
	Body        any
	Raw         []byte
	ContentType string
	// Anonymous requests are sent without Authorization and never refreshed.
	Anonymous bool
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   Observer
}

// Client talks to the REST backend.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	observer Observer
	refresh  singleflight.Group
}

// NewClient constructs a Client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		limiter:  limiter,
		logger:   logger,
		observer: opts.Observer,
	}
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type response struct {
	status int
	env    envelope
	raw    bool
}

// Do sends req and decodes the envelope data into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return err
	}
	idemKey := ""
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		idemKey = uuid.NewString()
	}

	var tokens TokenStore
	if !req.Anonymous {
		tokens = TokensFromContext(ctx)
		if tokens == nil {
			return ErrSessionExpired
		}
	}

	resp, used, err := c.send(ctx, req, body, contentType, idemKey, tokens)
	if err != nil {
		return err
	}
	if resp.status == http.StatusUnauthorized && tokens != nil {
		if current, _ := tokens.Tokens(); current == used || current == "" {
			if err := c.refreshTokens(ctx, tokens); err != nil {
				c.logger.Warn("backend token refresh failed", slog.String("path", req.Path), slog.Any("error", err))
				tokens.ClearTokens()
				return ErrSessionExpired
			}
		}
		resp, _, err = c.send(ctx, req, body, contentType, idemKey, tokens)
		if err != nil {
			return err
		}
		if resp.status == http.StatusUnauthorized {
			tokens.ClearTokens()
			return ErrSessionExpired
		}
	}
	return decode(req, resp, out)
}

func (c *Client) send(ctx context.Context, req Request, body []byte, contentType, idemKey string, tokens TokenStore) (response, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, "", err
		}
	}
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return response{}, "", fmt.Errorf("backend: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if idemKey != "" {
		httpReq.Header.Set("Idempotency-Key", idemKey)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		httpReq.Header.Set("X-Request-ID", reqID)
	}
	access := ""
	if tokens != nil {
		access, _ = tokens.Tokens()
		if access != "" {
			httpReq.Header.Set("Authorization", "Bearer "+access)
		}
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(req, 0, start)
		return response{}, access, fmt.Errorf("backend: %s %s: %w", req.Method, req.Path, errors.Join(ErrUnavailable, err))
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()
	c.observe(req, httpResp.StatusCode, start)

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyLength))
	if err != nil {
		return response{}, access, fmt.Errorf("backend: read body: %w", err)
	}
	resp := response{status: httpResp.StatusCode}
	if len(bytes.TrimSpace(payload)) == 0 {
		return resp, access, nil
	}
	if err := json.Unmarshal(payload, &resp.env); err != nil {
		resp.raw = true
	}
	return resp, access, nil
}

func (c *Client) refreshTokens(ctx context.Context, tokens TokenStore) error {
	_, refreshToken := tokens.Tokens()
	if refreshToken == "" {
		return errors.New("backend: no refresh token")
	}
	v, err, _ := c.refresh.Do(refreshToken, func() (any, error) {
		var pair TokenPair
		err := c.Do(ctx, Request{
			Method:    http.MethodPost,
			Path:      refreshPath,
			Body:      map[string]string{"refreshToken": refreshToken},
			Anonymous: true,
		}, &pair)
		if err != nil {
			return TokenPair{}, err
		}
		if pair.AccessToken == "" {
			return TokenPair{}, errors.New("backend: refresh returned no access token")
		}
		// Stored before the group releases so late 401s see the new token.
		tokens.SetTokens(pair.AccessToken, pair.RefreshToken)
		return pair, nil
	})
	if err != nil {
		return err
	}
	pair := v.(TokenPair)
	tokens.SetTokens(pair.AccessToken, pair.RefreshToken)
	return nil
}

func (c *Client) observe(req Request, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveBackendCall(req.Method, EndpointLabel(req.Path), status, time.Since(start))
}

// TokenPair is returned by the login and refresh endpoints.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func encodeBody(req Request) ([]byte, string, error) {
	if req.Raw != nil {
		return req.Raw, req.ContentType, nil
	}
	if req.Body == nil {
		return nil, "", nil
	}
	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("backend: encode body: %w", err)
	}
	return data, "application/json", nil
}

func decode(req Request, resp response, out any) error {
	failed := resp.status >= 400 || (resp.env.Success != nil && !*resp.env.Success)
	if failed {
		status := resp.status
		if status < 400 {
			status = http.StatusUnprocessableEntity
		}
		return &APIError{Status: status, Message: errorMessage(resp), Method: req.Method, Path: req.Path}
	}
	if resp.raw {
		return fmt.Errorf("backend: %s %s: response is not json", req.Method, req.Path)
	}
	if out == nil || len(resp.env.Data) == 0 || string(resp.env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.env.Data, out); err != nil {
		return fmt.Errorf("backend: %s %s: decode data: %w", req.Method, req.Path, err)
	}
	return nil
}

func errorMessage(resp response) string {
	if len(resp.env.Error) > 0 {
		var text string
		if err := json.Unmarshal(resp.env.Error, &text); err == nil && text != "" {
			return text
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(resp.env.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
	}
	if resp.env.Message != "" {
		return resp.env.Message
	}
	if text := http.StatusText(resp.status); text != "" {
		return text
	}
	return "request failed"
}

// EndpointLabel collapses identifiers in path so it can be used as a metric label.
func EndpointLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if looksLikeID(part) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeID(segment string) bool {
	if segment == "" {
		return false
	}
	if _, err := uuid.Parse(segment); err == nil {
		return true
	}
	digits, hex := true, len(segment) == 24
	for _, r := range segment {
		if r < '0' || r > '9' {
			digits = false
		}
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			hex = false
		}
	}
	return digits || hex
}
