// Package reliefweb provides a client for the ReliefWeb Updates API (v1).
//
// ReliefWeb requires no credentials but asks every consumer to identify
// itself with an appname query parameter for their analytics.
package reliefweb

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
	"github.com/MSF-Collaborate/msf-toolbox/internal/auth"
)

// DefaultBaseURL is the production ReliefWeb API endpoint.
const DefaultBaseURL = "https://api.reliefweb.int/v1"

const (
	defaultTimeout = 30 * time.Second
	defaultAppName = "testing-rwapi"
	defaultPreset  = "latest"
	defaultLimit   = 50
	defaultProfile = "full"
)

// Client is the ReliefWeb API client.
type Client struct {
	transport *api.Transport
	appName   string
	preset    string
	limit     int
	profile   string
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL    string
	appName    string
	preset     string
	limit      int
	profile    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// WithBaseURL overrides the ReliefWeb API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithAppName sets the appname analytics parameter sent on every request.
func WithAppName(name string) Option {
	return func(c *config) { c.appName = name }
}

// WithPreset sets the result preset (default "latest").
func WithPreset(preset string) Option {
	return func(c *config) { c.preset = preset }
}

// WithLimit sets how many results to return per query (max 1000).
func WithLimit(limit int) Option {
	return func(c *config) { c.limit = limit }
}

// WithProfile sets the field profile used when fetching single reports.
func WithProfile(profile string) Option {
	return func(c *config) { c.profile = profile }
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

// New creates a new ReliefWeb client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		baseURL: DefaultBaseURL,
		appName: defaultAppName,
		preset:  defaultPreset,
		limit:   defaultLimit,
		profile: defaultProfile,
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	transport, err := api.NewTransport(cfg.baseURL, auth.QueryParams{
		"appname": cfg.appName,
	}, httpClient)
	if err != nil {
		return nil, err
	}
	transport.Logger = cfg.logger
	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}

	return &Client{
		transport: transport,
		appName:   cfg.appName,
		preset:    cfg.preset,
		limit:     cfg.limit,
		profile:   cfg.profile,
	}, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

func (c *Client) profileQuery() url.Values {
	v := url.Values{}
	v.Set("profile", c.profile)
	return v
}
