// Package topdesk provides a client for the TopDesk incident API.
//
// Incidents are addressed by either their UUID or their incident number;
// the client routes to the matching endpoint automatically.
package topdesk

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
	"github.com/MSF-Collaborate/msf-toolbox/internal/auth"
)

const defaultTimeout = 30 * time.Second

// Sentinel errors for common failure modes.
var (
	ErrNoBaseURL     = errors.New("topdesk: no base URL configured")
	ErrNoCredentials = errors.New("topdesk: no username/password configured")
)

// Client is the TopDesk API client.
type Client struct {
	transport *api.Transport
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// WithBaseURL sets the TopDesk instance URL, e.g.
// "https://yourcompany.topdesk.net".
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithCredentials sets the operator username and application password.
func WithCredentials(username, password string) Option {
	return func(c *config) {
		c.username = username
		c.password = password
	}
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

// New creates a new TopDesk client with the given options.
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
	if cfg.username == "" || cfg.password == "" {
		return nil, ErrNoCredentials
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	transport, err := api.NewTransport(cfg.baseURL, &auth.Basic{
		Username: cfg.username,
		Password: cfg.password,
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

// BaseURL returns the configured instance URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// incidentPath builds the endpoint path for an incident reference, routing
// UUIDs to /id/ and incident numbers to /number/.
func incidentPath(ref, suffix string) string {
	segment := "number"
	if _, err := uuid.Parse(ref); err == nil {
		segment = "id"
	}
	return "/tas/api/incidents/" + segment + "/" + url.PathEscape(ref) + suffix
}
