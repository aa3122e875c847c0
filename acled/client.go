// Package acled provides a client for the ACLED conflict event API.
//
// ACLED authenticates every call with an API key and the email address it
// was registered with, passed as query parameters.
package acled

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
	"github.com/MSF-Collaborate/msf-toolbox/internal/auth"
)

// DefaultBaseURL is the production ACLED API endpoint.
const DefaultBaseURL = "https://api.acleddata.com"

const (
	defaultTimeout = 30 * time.Second
	defaultLimit   = 50
)

// Sentinel errors for common failure modes.
var (
	ErrNoCredentials = errors.New("acled: no API key or email configured")
)

// Client is the ACLED API client.
type Client struct {
	transport *api.Transport
	limit     int
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL    string
	apiKey     string
	email      string
	limit      int
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// WithBaseURL overrides the ACLED API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithAPIKey sets the ACLED API key and the email it is registered with.
func WithAPIKey(key, email string) Option {
	return func(c *config) {
		c.apiKey = key
		c.email = email
	}
}

// WithLimit sets the default number of results per call.
func WithLimit(limit int) Option {
	return func(c *config) { c.limit = limit }
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

// New creates a new ACLED client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		baseURL: DefaultBaseURL,
		limit:   defaultLimit,
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.apiKey == "" || cfg.email == "" {
		return nil, ErrNoCredentials
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	transport, err := api.NewTransport(cfg.baseURL, auth.QueryParams{
		"key":   cfg.apiKey,
		"email": cfg.email,
	}, httpClient)
	if err != nil {
		return nil, err
	}
	transport.Logger = cfg.logger
	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}

	return &Client{transport: transport, limit: cfg.limit}, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

func (c *Client) limitParam(override int) string {
	if override > 0 {
		return strconv.Itoa(override)
	}
	return strconv.Itoa(c.limit)
}
