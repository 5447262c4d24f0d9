package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	cleared bool
}

func (m *memoryTokens) Tokens() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, m.refresh
}

func (m *memoryTokens) SetTokens(access, refresh string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = access
	if refresh != "" {
		m.refresh = refresh
	}
}

func (m *memoryTokens) ClearTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh, m.cleared = "", "", true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveBackendCall(method, endpoint string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, method+" "+endpoint)
}

func TestDoDecodesEnvelopeData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Empty(t, r.Header.Get("Idempotency-Key"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []map[string]any{{"_id": "p1", "name": "Milk"}}})
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client := NewClient(Options{BaseURL: srv.URL, Observer: obs})
	ctx := WithTokens(context.Background(), StaticToken("tok"))

	var out []struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	require.NoError(t, Get(ctx, client, "/api/products", nil, &out))
	require.Len(t, out, 1)
	require.Equal(t, "Milk", out[0].Name)
	require.Equal(t, []string{"GET /api/products"}, obs.calls)
}

func TestDoMapsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "price must be positive"})
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	ctx := WithTokens(context.Background(), StaticToken("tok"))
	err := Send(ctx, client, http.MethodPost, "/api/products", map[string]any{"price": -1}, nil)
	require.ErrorIs(t, err, ErrValidation)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "price must be positive", apiErr.SafeMessage())
}

func TestDoTreatsSuccessFalseAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": map[string]string{"message": "out of stock"}})
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	ctx := WithTokens(context.Background(), StaticToken("tok"))
	err := Send(ctx, client, http.MethodPost, "/api/purchases", map[string]any{}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "out of stock", apiErr.Message)
}

func TestDoRefreshesOnceOn401(t *testing.T) {
	var refreshes, calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case refreshPath:
			refreshes.Add(1)
			require.Empty(t, r.Header.Get("Authorization"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "refresh-1", body["refreshToken"])
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"accessToken": "fresh", "refreshToken": "refresh-2"}})
		default:
			calls.Add(1)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "jwt expired"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]int{"count": 3}})
		}
	}))
	defer srv.Close()

	tokens := &memoryTokens{access: "stale", refresh: "refresh-1"}
	client := NewClient(Options{BaseURL: srv.URL})
	ctx := WithTokens(context.Background(), tokens)

	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, Get(ctx, client, "/api/orders", nil, &out))
	require.Equal(t, 3, out.Count)
	require.Equal(t, int32(1), refreshes.Load())
	require.Equal(t, int32(2), calls.Load())
	access, refresh := tokens.Tokens()
	require.Equal(t, "fresh", access)
	require.Equal(t, "refresh-2", refresh)
}

func TestDoSharesOneRefreshAcrossConcurrentCalls(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			refreshes.Add(1)
			time.Sleep(20 * time.Millisecond)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"accessToken": "fresh", "refreshToken": "refresh-2"}})
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "jwt expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []string{}})
	}))
	defer srv.Close()

	tokens := &memoryTokens{access: "stale", refresh: "refresh-1"}
	client := NewClient(Options{BaseURL: srv.URL})
	ctx := WithTokens(context.Background(), tokens)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = Get(ctx, client, "/api/products", nil, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), refreshes.Load())
	access, refresh := tokens.Tokens()
	require.Equal(t, "fresh", access)
	require.Equal(t, "refresh-2", refresh)
}

func TestDoExpiresSessionWhenRefreshFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid token"})
	}))
	defer srv.Close()

	tokens := &memoryTokens{access: "stale", refresh: "bad"}
	client := NewClient(Options{BaseURL: srv.URL})
	err := Get(WithTokens(context.Background(), tokens), client, "/api/users", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.True(t, tokens.cleared)
}

func TestDoExpiresSessionWhenRetryStillUnauthorized(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			refreshes.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"accessToken": "fresh"}})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "nope"})
	}))
	defer srv.Close()

	tokens := &memoryTokens{access: "stale", refresh: "r"}
	client := NewClient(Options{BaseURL: srv.URL})
	err := Get(WithTokens(context.Background(), tokens), client, "/api/users", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Equal(t, int32(1), refreshes.Load())
}

func TestDoWithoutTokensNeedsLogin(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:0"})
	err := Get(context.Background(), client, "/api/products", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestDoReportsNonJSONFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	err := Get(WithTokens(context.Background(), StaticToken("t")), client, "/api/products", nil, nil)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestEndpointLabel(t *testing.T) {
	require.Equal(t, "/api/orders/:id/status", EndpointLabel("/api/orders/64b7f0c2e4b0a1a2b3c4d5e6/status"))
	require.Equal(t, "/api/products/:id", EndpointLabel("/api/products/42"))
	require.Equal(t, "/api/purchases/my", EndpointLabel("/api/purchases/my"))
}
