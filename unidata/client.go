// Package unidata provides a client for the UniData article catalogue API.
//
// The API authenticates with login/password query parameters on every
// request.
package unidata

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
	"github.com/MSF-Collaborate/msf-toolbox/internal/auth"
)

const defaultTimeout = 10 * time.Second

// Sentinel errors for common failure modes.
var (
	ErrNoServerURL   = errors.New("unidata: no server URL configured")
	ErrNoCredentials = errors.New("unidata: no username/password configured")
)

// Client is the UniData API client.
type Client struct {
	transport *api.Transport
}

// Option configures a Client.
type Option func(*config)

type config struct {
	serverURL  string
	username   string
	password   string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// WithServerURL sets the UniData server URL.
func WithServerURL(url string) Option {
	return func(c *config) { c.serverURL = url }
}

// WithCredentials sets the UniData username and password.
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

// New creates a new UniData client with the given options.
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
	if cfg.username == "" || cfg.password == "" {
		return nil, ErrNoCredentials
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	transport, err := api.NewTransport(cfg.serverURL, auth.QueryParams{
		"login":    cfg.username,
		"password": cfg.password,
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

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	var result map[string]any
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result, nil
}

// ArticleQuery filters the article listing. Zero values are omitted.
type ArticleQuery struct {
	// Mode sets the level of detail of the response.
	Mode int

	// FormerCode filters by a current or former article code.
	FormerCode string

	// Filter is an XPath expression applied to the table rows.
	Filter string

	// Links controls whether descriptions and labels include links.
	Links int

	// PublishOnWeb selects the Golden articles relevant after validation.
	PublishOnWeb bool

	// Size is the number of rows per page.
	Size int

	// Page is the requested page number.
	Page int
}

func (q *ArticleQuery) values() url.Values {
	v := url.Values{}
	if q == nil {
		return v
	}
	if q.Mode != 0 {
		v.Set("mode", strconv.Itoa(q.Mode))
	}
	if q.FormerCode != "" {
		v.Set("formercode", q.FormerCode)
	}
	if q.Filter != "" {
		v.Set("filter", q.Filter)
	}
	if q.Links != 0 {
		v.Set("links", strconv.Itoa(q.Links))
	}
	if q.PublishOnWeb {
		v.Set("publishonweb", "true")
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// GetArticles retrieves articles matching the query.
func (c *Client) GetArticles(ctx context.Context, query *ArticleQuery) (map[string]any, error) {
	return c.get(ctx, "/articles", query.values())
}

// GetSubcatalogues retrieves the subcatalogues.
func (c *Client) GetSubcatalogues(ctx context.Context) (map[string]any, error) {
	return c.get(ctx, "/lists", nil)
}

// GetIntros retrieves the intros.
func (c *Client) GetIntros(ctx context.Context) (map[string]any, error) {
	return c.get(ctx, "/intros", nil)
}

// GetChecklists retrieves the checklists.
func (c *Client) GetChecklists(ctx context.Context) (map[string]any, error) {
	return c.get(ctx, "/checklists", nil)
}
