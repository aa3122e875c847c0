// Package kobo provides a client for the KoboToolbox API.
//
// Authentication uses the account API token (Account Settings / Security /
// API key) sent as a "Token" authorization header.
package kobo

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
	"github.com/MSF-Collaborate/msf-toolbox/internal/auth"
)

const defaultTimeout = 30 * time.Second

// Sentinel errors for common failure modes.
var (
	ErrNoBaseURL = errors.New("kobo: no base URL configured")
	ErrNoToken   = errors.New("kobo: no API token configured")
)

// Client is the KoboToolbox API client.
type Client struct {
	transport *api.Transport
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// WithBaseURL sets the Kobo API base URL, e.g.
// "https://kf.kobotoolbox.org/api/v2".
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithToken sets the account API token.
func WithToken(token string) Option {
	return func(c *config) { c.token = token }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithTimeout sets the default request timeout.
// Ignored when WithHTTPClient is used; set the timeout on that client instead.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithLogger sets a logger for request debug logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a new Kobo client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.baseURL == "" {
		return nil, ErrNoBaseURL
	}
	if cfg.token == "" {
		return nil, ErrNoToken
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	transport, err := api.NewTransport(cfg.baseURL, &auth.Token{
		Scheme: "Token",
		Value:  cfg.token,
	}, httpClient)
	if err != nil {
		return nil, err
	}
	transport.Logger = cfg.logger
	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}

	return &Client{transport: transport}, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// CheckAuth verifies the configured token by requesting the asset list.
// It returns nil when the token is accepted.
func (c *Client) CheckAuth(ctx context.Context) error {
	resp, err := c.transport.Do(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/assets/",
		Query:  jsonFormat(),
	})
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return nil
}

func jsonFormat() url.Values {
	v := url.Values{}
	v.Set("format", "json")
	return v
}
