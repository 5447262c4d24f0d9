// Package report renders documents to PDF through a Gotenberg instance.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable is returned when Gotenberg cannot be reached or fails.
var ErrUnavailable = errors.New("report: pdf renderer unavailable")

// Renderer converts HTML into PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html string, opts PageOptions) ([]byte, error)
}

// PageOptions controls paper layout. Sizes are in inches; zero keeps the
// Gotenberg default.
type PageOptions struct {
	PaperWidth   float64
	PaperHeight  float64
	MarginTop    float64
	MarginBottom float64
	Landscape    bool
}

// A4 is the layout used for invoices.
var A4 = PageOptions{PaperWidth: 8.27, PaperHeight: 11.7, MarginTop: 0.4, MarginBottom: 0.4}

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: health returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// RenderHTML converts a self-contained HTML document into a PDF.
func (c *Client) RenderHTML(ctx context.Context, html string, opts PageOptions) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, strings.NewReader(html)); err != nil {
		return nil, err
	}
	for field, value := range opts.fields() {
		if err := writer.WriteField(field, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: render failed with status %d", ErrUnavailable, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (o PageOptions) fields() map[string]string {
	out := map[string]string{}
	set := func(name string, v float64) {
		if v > 0 {
			out[name] = fmt.Sprintf("%.2f", v)
		}
	}
	set("paperWidth", o.PaperWidth)
	set("paperHeight", o.PaperHeight)
	set("marginTop", o.MarginTop)
	set("marginBottom", o.MarginBottom)
	if o.Landscape {
		out["landscape"] = "true"
	}
	return out
}
