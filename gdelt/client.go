// Package gdelt provides a client for the GDELT DOC 2.0 article search API.
//
// The API is unauthenticated. Queries are composed from a free-text value
// plus optional source country, language and domain OR-groups.
package gdelt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// DefaultBaseURL is the production GDELT DOC API endpoint.
const DefaultBaseURL = "https://api.gdeltproject.org/api/v2"

const (
	defaultTimeout = 30 * time.Second
	defaultSort    = "HybridRel"
	defaultLimit   = 50

	apiDateFormat = "20060102150405"
)

// Client is the GDELT API client.
type Client struct {
	transport *api.Transport
	sort      string
	limit     int
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL    string
	sort       string
	limit      int
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// WithBaseURL overrides the GDELT API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithSort sets the article sort order (default "HybridRel").
func WithSort(sort string) Option {
	return func(c *config) { c.sort = sort }
}

// WithLimit sets the maximum number of articles returned per query.
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

// New creates a new GDELT client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		baseURL: DefaultBaseURL,
		sort:    defaultSort,
		limit:   defaultLimit,
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

	transport, err := api.NewTransport(cfg.baseURL, nil, httpClient)
	if err != nil {
		return nil, err
	}
	transport.Logger = cfg.logger
	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}

	return &Client{transport: transport, sort: cfg.sort, limit: cfg.limit}, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// Article is a single entry from an ArtList response.
type Article struct {
	URL           string `json:"url"`
	URLMobile     string `json:"url_mobile"`
	Title         string `json:"title"`
	SeenDate      string `json:"seendate"`
	SocialImage   string `json:"socialimage"`
	Domain        string `json:"domain"`
	Language      string `json:"language"`
	SourceCountry string `json:"sourcecountry"`
}

// ArticleFilters restricts results by publication source. These filter the
// source of the reporting, not its content; use the query value itself to
// filter content.
type ArticleFilters struct {
	// SourceCountries limits results to sources from these countries.
	SourceCountries []string

	// SourceLanguages limits results to these source languages.
	// Defaults to english when nil.
	SourceLanguages []string

	// SourceDomains limits results to these source domains.
	SourceDomains []string
}

// ListArticles searches GDELT for articles between start and end (inclusive,
// YYYY-MM-DD) matching the query. The end date must be after the start date.
func (c *Client) ListArticles(ctx context.Context, startDate, endDate, query string, filters *ArticleFilters) ([]Article, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, apierror.NewValidationError("invalid start date %q: must be YYYY-MM-DD", startDate)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, apierror.NewValidationError("invalid end date %q: must be YYYY-MM-DD", endDate)
	}
	if !end.After(start) {
		return nil, apierror.NewValidationError("end date must be after start date")
	}

	if filters == nil {
		filters = &ArticleFilters{}
	}
	languages := filters.SourceLanguages
	if languages == nil {
		languages = []string{"english"}
	}

	for _, group := range []struct {
		operator string
		values   []string
	}{
		{"sourcecountry", filters.SourceCountries},
		{"sourcelang", languages},
		{"domain", filters.SourceDomains},
	} {
		if clause := orClause(group.operator, group.values); clause != "" {
			query = fmt.Sprintf("%s AND %s", query, clause)
		}
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("mode", "ArtList")
	params.Set("startdatetime", start.Format(apiDateFormat))
	params.Set("enddatetime", end.Format(apiDateFormat))
	params.Set("format", "JSON")
	params.Set("trans", "googtrans")
	params.Set("sort", c.sort)
	params.Set("maxrecords", strconv.Itoa(c.limit))

	resp, err := c.transport.Do(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/doc/doc",
		Query:  params,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}

	// GDELT answers malformed queries with 200 and a plain-text message.
	var result struct {
		Articles []Article `json:"articles"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, apierror.NewValidationError("no articles returned: %s", strings.TrimSpace(string(resp.Body)))
	}
	return result.Articles, nil
}

// orClause joins values into an "(op:a OR op:b)" group. Single values are
// left unparenthesized, matching the DOC API query syntax.
func orClause(operator string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = operator + ":" + value
	}
	clause := strings.Join(parts, " OR ")
	if len(parts) > 1 {
		clause = "(" + clause + ")"
	}
	return clause
}
