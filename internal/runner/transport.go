package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"collection-runner/internal/models"
	"collection-runner/internal/validator"
)

// Transport is the HTTP collaborator: one dispatch of a fully resolved
// request. Any returned error is captured as a per-request failure by the
// runner, never a run-fatal one.
type Transport interface {
	Send(ctx context.Context, req *models.ResolvedRequest) (*models.ResponseData, error)
}

// HTTPTransport dispatches over net/http with SSRF validation on the initial
// URL and on every redirect hop.
type HTTPTransport struct {
	DefaultTimeout  time.Duration
	MaxRedirects    int
	MaxResponseSize int64
	AllowLocalhost  bool
	AllowPrivateIPs bool
}

func (t *HTTPTransport) Send(ctx context.Context, req *models.ResolvedRequest) (*models.ResponseData, error) {
	if err := validator.ValidateExecutionURL(req.URL, t.AllowLocalhost, t.AllowPrivateIPs); err != nil {
		return nil, fmt.Errorf("URL blocked by SSRF protection: %w", err)
	}

	timeout := t.DefaultTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(redirect *http.Request, via []*http.Request) error {
			if len(via) >= t.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", t.MaxRedirects)
			}
			if err := validator.ValidateExecutionURL(redirect.URL.String(), t.AllowLocalhost, t.AllowPrivateIPs); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}

	var bodyReader io.Reader
	method := strings.ToUpper(req.Method)
	supportsBody := method == "POST" || method == "PUT" || method == "PATCH" || method == "DELETE"
	if req.Body != "" && supportsBody {
		bodyReader = bytes.NewReader([]byte(req.Body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	applyAuth(httpReq, req.Auth)

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, t.MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	return &models.ResponseData{
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Headers:    responseHeaders,
		Body:       string(responseBody),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// applyAuth materializes a resolved auth descriptor onto the outgoing request.
// Explicit headers already set by the request win.
func applyAuth(req *http.Request, auth *models.Auth) {
	if auth == nil {
		return
	}
	switch auth.Type {
	case "bearer":
		if req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+auth.Params["token"])
		}
	case "basic":
		if req.Header.Get("Authorization") == "" {
			req.SetBasicAuth(auth.Params["username"], auth.Params["password"])
		}
	case "apikey":
		key := auth.Params["key"]
		if key == "" {
			key = "X-Api-Key"
		}
		if req.Header.Get(key) == "" {
			req.Header.Set(key, auth.Params["value"])
		}
	}
}
