// Package api provides the low-level HTTP transport shared by the vendor clients.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/internal/auth"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Transport handles HTTP communication with a vendor API.
type Transport struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
	Auth       auth.Authenticator
	UserAgent  string
	Logger     zerolog.Logger
}

// NewTransport creates a Transport with the given configuration.
// authn may be nil for unauthenticated APIs.
func NewTransport(baseURL string, authn auth.Authenticator, httpClient *http.Client) (*Transport, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if authn == nil {
		authn = auth.None{}
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	return &Transport{
		BaseURL:    u,
		HTTPClient: httpClient,
		Auth:       authn,
		UserAgent:  "msf-toolbox/1.0",
		Logger:     zerolog.Nop(),
	}, nil
}

// Request represents an API request.
type Request struct {
	Method string

	// Path is joined onto the transport base URL. An absolute URL is used
	// as-is, which covers vendor-provided follow-up links such as Kobo's
	// "next" page URLs and ReliefWeb report hrefs.
	Path string

	Query   url.Values
	Body    any
	Form    url.Values
	Headers http.Header
}

// Response represents an API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do executes an API request and returns the raw response.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	// Limit response body size to prevent memory exhaustion
	limitedReader := io.LimitReader(httpResp.Body, defaultMaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if int64(len(body)) > defaultMaxBodySize {
		return nil, fmt.Errorf("response too large: exceeds %d bytes", defaultMaxBodySize)
	}

	t.Logger.Debug().
		Str("method", req.Method).
		Str("url", httpReq.URL.Redacted()).
		Int("status", httpResp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}, nil
}

// DoJSON executes a request and unmarshals the JSON response into result.
// It only attempts to unmarshal on success status codes (< 400).
func (t *Transport) DoJSON(ctx context.Context, req *Request, result any) (*Response, error) {
	resp, err := t.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	if result != nil && len(resp.Body) > 0 && resp.StatusCode < 400 {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return resp, fmt.Errorf("unmarshaling response: %w", err)
		}
	}

	return resp, nil
}

// Stream executes a request and hands the raw response body to the caller.
// The caller must close the returned reader. Used for file downloads
// (SharePoint files, Power BI report exports).
func (t *Transport) Stream(ctx context.Context, req *Request) (io.ReadCloser, *http.Response, error) {
	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	httpResp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}

	return httpResp.Body, httpResp, nil
}

func (t *Transport) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	var u *url.URL
	if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
		parsed, err := url.Parse(req.Path)
		if err != nil {
			return nil, fmt.Errorf("invalid request URL: %w", err)
		}
		u = parsed
	} else {
		u = t.BaseURL.JoinPath(req.Path)
	}

	if len(req.Query) > 0 {
		values := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
		u.RawQuery = values.Encode()
	}

	var bodyReader io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		bodyReader = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.Body != nil:
		if raw, ok := req.Body.([]byte); ok {
			bodyReader = bytes.NewReader(raw)
		} else {
			data, err := json.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("marshaling request body: %w", err)
			}
			bodyReader = bytes.NewReader(data)
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.UserAgent)

	t.Auth.Apply(httpReq)

	maps.Copy(httpReq.Header, req.Headers)

	return httpReq, nil
}
