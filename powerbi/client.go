// Package powerbi provides a client for the Power BI REST API: workspaces,
// reports, datasets and their users.
//
// The client signs in with the resource owner password grant against Azure
// AD and refreshes the bearer token transparently when it expires.
package powerbi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
	"github.com/MSF-Collaborate/msf-toolbox/internal/auth"
)

// API endpoints and token parameters.
const (
	DefaultBaseURL      = "https://api.powerbi.com/v1.0/myorg"
	DefaultAuthorityURL = "https://login.microsoftonline.com"
	DefaultTenantID     = "common"

	resourceURL          = "https://analysis.windows.net/powerbi/api"
	defaultTokenLifetime = time.Hour
)

const defaultTimeout = 60 * time.Second

// Sentinel errors for common failure modes.
var (
	ErrNoClientID    = errors.New("powerbi: no client ID configured")
	ErrNoCredentials = errors.New("powerbi: no username/password configured")
)

// Client is the Power BI API client.
type Client struct {
	// Workspaces provides access to workspace (group) endpoints.
	Workspaces *WorkspacesService

	// Reports provides access to report endpoints.
	Reports *ReportsService

	// Datasets provides access to dataset endpoints.
	Datasets *DatasetsService

	transport *api.Transport

	authorityURL string
	tenantID     string
	clientID     string
	clientSecret string
	username     string
	password     string

	httpClient *http.Client
	tokenTTL   time.Duration

	mu          sync.Mutex
	bearer      string
	tokenExpiry time.Time
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL       string
	authorityURL  string
	tenantID      string
	clientID      string
	clientSecret  string
	username      string
	password      string
	httpClient    *http.Client
	timeout       time.Duration
	tokenLifetime time.Duration
	userAgent     string
	logger        zerolog.Logger
}

// WithBaseURL overrides the Power BI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithAuthorityURL overrides the Azure AD authority used for sign-in.
func WithAuthorityURL(url string) Option {
	return func(c *config) { c.authorityURL = url }
}

// WithTenantID sets the Azure AD tenant. Defaults to "common".
func WithTenantID(tenantID string) Option {
	return func(c *config) { c.tenantID = tenantID }
}

// WithClientID sets the app registration client ID.
func WithClientID(clientID string) Option {
	return func(c *config) { c.clientID = clientID }
}

// WithClientSecret sets the app registration client secret. Optional;
// public client registrations sign in without one.
func WithClientSecret(secret string) Option {
	return func(c *config) { c.clientSecret = secret }
}

// WithCredentials sets the account used to sign in to Power BI.
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

// WithTokenLifetime overrides how long a sign-in token is reused before
// the client signs in again. Defaults to one hour.
func WithTokenLifetime(d time.Duration) Option {
	return func(c *config) { c.tokenLifetime = d }
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithLogger sets a logger for request debug logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a new Power BI client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		baseURL:       DefaultBaseURL,
		authorityURL:  DefaultAuthorityURL,
		tenantID:      DefaultTenantID,
		timeout:       defaultTimeout,
		tokenLifetime: defaultTokenLifetime,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.clientID == "" {
		return nil, ErrNoClientID
	}
	if cfg.username == "" || cfg.password == "" {
		return nil, ErrNoCredentials
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	client := &Client{
		authorityURL: cfg.authorityURL,
		tenantID:     cfg.tenantID,
		clientID:     cfg.clientID,
		clientSecret: cfg.clientSecret,
		username:     cfg.username,
		password:     cfg.password,
		httpClient:   httpClient,
		tokenTTL:     cfg.tokenLifetime,
	}

	transport, err := api.NewTransport(cfg.baseURL, auth.Func(client.applyBearer), httpClient)
	if err != nil {
		return nil, err
	}
	transport.Logger = cfg.logger
	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}

	client.transport = transport
	client.Workspaces = &WorkspacesService{client: client}
	client.Reports = &ReportsService{client: client}
	client.Datasets = &DatasetsService{client: client}
	return client, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

func (c *Client) applyBearer(req *http.Request) {
	c.mu.Lock()
	bearer := c.bearer
	c.mu.Unlock()
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
}

// Connect signs in against Azure AD and caches the bearer token. Calling
// it explicitly is optional; every API method ensures a valid token first.
func (c *Client) Connect(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("resource", resourceURL)
	form.Set("client_id", c.clientID)
	form.Set("username", c.username)
	form.Set("password", c.password)
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	tokenTransport, err := api.NewTransport(c.authorityURL, nil, c.httpClient)
	if err != nil {
		return err
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	resp, err := tokenTransport.DoJSON(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/%s/oauth2/token", url.PathEscape(c.tenantID)),
		Form:   form,
	}, &token)
	if err != nil {
		return fmt.Errorf("requesting token: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	if token.AccessToken == "" {
		return errors.New("powerbi: token response missing access_token")
	}

	c.mu.Lock()
	c.bearer = token.AccessToken
	c.tokenExpiry = time.Now().Add(c.tokenTTL)
	c.mu.Unlock()
	return nil
}

// ensureToken refreshes the cached bearer token when missing or expired.
func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	valid := c.bearer != "" && time.Now().Before(c.tokenExpiry)
	c.mu.Unlock()
	if valid {
		return nil
	}
	return c.Connect(ctx)
}

// doJSON ensures a valid token and executes the request.
func (c *Client) doJSON(ctx context.Context, req *api.Request, result any) (*api.Response, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}
	return c.transport.DoJSON(ctx, req, result)
}
