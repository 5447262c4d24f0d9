// Package backendtest provides an in-memory backend.Caller for service tests.
package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/grocerops/grocerops/internal/platform/backend"
)

// Responder produces the data payload for a request, or an error.
type Responder func(req backend.Request) (any, error)

// Fake routes requests by "METHOD path" to responders and records every call.
type Fake struct {
	mu     sync.Mutex
	routes map[string]Responder
	calls  []backend.Request
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{routes: make(map[string]Responder)}
}

// On registers a responder for method and path.
func (f *Fake) On(method, path string, fn Responder) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fn
	return f
}

// Reply registers a fixed data payload for method and path.
func (f *Fake) Reply(method, path string, data any) *Fake {
	return f.On(method, path, func(backend.Request) (any, error) { return data, nil })
}

// Fail registers a backend error with the given status for method and path.
func (f *Fake) Fail(method, path string, status int, message string) *Fake {
	return f.On(method, path, func(req backend.Request) (any, error) {
		return nil, &backend.APIError{Status: status, Message: message, Method: req.Method, Path: req.Path}
	})
}

// Do implements backend.Caller. Payloads go through JSON like real responses.
func (f *Fake) Do(ctx context.Context, req backend.Request, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn, ok := f.routes[req.Method+" "+req.Path]
	f.mu.Unlock()
	if !ok {
		return &backend.APIError{Status: http.StatusNotFound, Message: fmt.Sprintf("no route for %s %s", req.Method, req.Path), Method: req.Method, Path: req.Path}
	}
	data, err := fn(req)
	if err != nil {
		return err
	}
	if out == nil || data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Calls returns a copy of the recorded requests.
func (f *Fake) Calls() []backend.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// Called reports how many times method and path were requested.
func (f *Fake) Called(method, path string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// Body decodes the JSON body of req into dst.
func Body(req backend.Request, dst any) error {
	raw, err := json.Marshal(req.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
