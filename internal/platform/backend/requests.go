package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Get issues an authenticated GET.
func Get(ctx context.Context, c Caller, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Send issues an authenticated request with a JSON body.
func Send(ctx context.Context, c Caller, method, path string, body, out any) error {
	return c.Do(ctx, Request{Method: method, Path: path, Body: body}, out)
}

// Upload posts a single file as multipart/form-data.
func Upload(ctx context.Context, c Caller, path, field, filename string, file io.Reader, fields map[string]string, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("backend: write field %s: %w", k, err)
		}
	}
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("backend: create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("backend: copy upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("backend: close multipart: %w", err)
	}
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Raw:         buf.Bytes(),
		ContentType: writer.FormDataContentType(),
	}, out)
}

// PathID appends an escaped identifier to a resource path.
func PathID(base, id string, suffix ...string) string {
	p := base + "/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}
