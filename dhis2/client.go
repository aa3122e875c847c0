// Package dhis2 provides a client for the DHIS2 Web API, covering metadata
// retrieval and data value management.
//
// Authentication is either basic auth or a personal access token (sent with
// the "ApiToken" scheme). One of the two must be configured.
package dhis2

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
	"github.com/MSF-Collaborate/msf-toolbox/internal/auth"
)

const defaultTimeout = 10 * time.Second

// Sentinel errors for common failure modes.
var (
	ErrNoServerURL   = errors.New("dhis2: no server URL configured")
	ErrNoCredentials = errors.New("dhis2: no username/password or personal access token configured")
)

// Client is the DHIS2 API client.
type Client struct {
	// Metadata provides access to metadata endpoints.
	Metadata *MetadataService

	// DataValues provides access to data value endpoints.
	DataValues *DataValuesService

	transport *api.Transport
}

// Option configures a Client.
type Option func(*config)

type config struct {
	serverURL  string
	username   string
	password   string
	pat        string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// WithServerURL sets the DHIS2 server URL, e.g. "https://play.dhis2.org/demo".
func WithServerURL(url string) Option {
	return func(c *config) { c.serverURL = url }
}

// WithBasicAuth sets username/password credentials.
func WithBasicAuth(username, password string) Option {
	return func(c *config) {
		c.username = username
		c.password = password
	}
}

// WithPersonalAccessToken sets a DHIS2 personal access token. Takes
// precedence over basic auth when both are configured.
func WithPersonalAccessToken(token string) Option {
	return func(c *config) { c.pat = token }
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

// New creates a new DHIS2 client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.serverURL == "" {
		return nil, ErrNoServerURL
	}

	var authn auth.Authenticator
	switch {
	case cfg.pat != "":
		authn = &auth.Token{Scheme: "ApiToken", Value: cfg.pat}
	case cfg.username != "" && cfg.password != "":
		authn = &auth.Basic{Username: cfg.username, Password: cfg.password}
	default:
		return nil, ErrNoCredentials
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	transport, err := api.NewTransport(cfg.serverURL, authn, httpClient)
	if err != nil {
		return nil, err
	}
	transport.Logger = cfg.logger
	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}

	client := &Client{transport: transport}
	client.Metadata = &MetadataService{transport: transport}
	client.DataValues = &DataValuesService{transport: transport}
	return client, nil
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// Params holds optional query parameters passed through to the API, such as
// fields, filter or paging controls. Empty values are omitted.
type Params map[string]string

func (p Params) values() url.Values {
	v := url.Values{}
	for key, value := range p {
		if value != "" {
			v.Set(key, value)
		}
	}
	return v
}
