// Package modis provides a client for the ORNL MODIS REST API, scoped to a
// single product and point location.
//
// Available products are listed at https://modis.ornl.gov/rst/api/v1/products.
package modis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// DefaultBaseURL is the public MODIS REST API endpoint.
const DefaultBaseURL = "https://modis.ornl.gov/rst/api/v1"

const defaultTimeout = 30 * time.Second

// ErrNoProduct is returned when no product code is configured.
var ErrNoProduct = errors.New("modis: no product configured")

// Client is a MODIS API client for one product at one location.
type Client struct {
	product   string
	latitude  float64
	longitude float64
	transport *api.Transport
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
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

// New creates a client for the given product code and point coordinates,
// e.g. New("MOD13Q1", 8.48, -13.23).
func New(product string, latitude, longitude float64, opts ...Option) (*Client, error) {
	cfg := &config{
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if product == "" {
		return nil, ErrNoProduct
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

	return &Client{
		product:   product,
		latitude:  latitude,
		longitude: longitude,
		transport: transport,
	}, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// ProductDate pairs a MODIS composite date (AYYYYDDD) with its calendar
// date.
type ProductDate struct {
	ModisDate    string `json:"modis_date"`
	CalendarDate string `json:"calendar_date"`
}

// Band describes one data layer of the product.
type Band struct {
	Band        string `json:"band"`
	Description string `json:"description"`
	Units       string `json:"units"`
	ValidRange  string `json:"valid_range"`
	FillValue   string `json:"fill_value"`
	ScaleFactor string `json:"scale_factor"`
	AddOffset   string `json:"add_offset"`
}

// Subset is the pixel data returned for a band over a date range.
type Subset struct {
	XLLCorner string        `json:"xllcorner"`
	YLLCorner string        `json:"yllcorner"`
	CellSize  float64       `json:"cellsize"`
	NRows     int           `json:"nrows"`
	NCols     int           `json:"ncols"`
	Band      string        `json:"band"`
	Units     string        `json:"units"`
	Scale     string        `json:"scale"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Header    string        `json:"header"`
	Subset    []SubsetEntry `json:"subset"`
}

// SubsetEntry is one composite period within a subset.
type SubsetEntry struct {
	ModisDate    string    `json:"modis_date"`
	CalendarDate string    `json:"calendar_date"`
	Band         string    `json:"band"`
	Tile         string    `json:"tile"`
	ProcDate     string    `json:"proc_date"`
	Data         []float64 `json:"data"`
}

func (c *Client) location() url.Values {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(c.latitude, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(c.longitude, 'f', -1, 64))
	return v
}

// ProductDates lists the valid composite dates at the configured location.
// MODIS releases data in 8-day cycles.
func (c *Client) ProductDates(ctx context.Context) ([]ProductDate, error) {
	var result struct {
		Dates []ProductDate `json:"dates"`
	}
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/%s/dates", url.PathEscape(c.product)),
		Query:  c.location(),
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Dates, nil
}

// ProductBands lists the data layers available for the product.
func (c *Client) ProductBands(ctx context.Context) ([]Band, error) {
	var result struct {
		Bands []Band `json:"bands"`
	}
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/%s/bands", url.PathEscape(c.product)),
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Bands, nil
}

// SubsetRequest selects the band, date range and spatial extent of a
// ProductData call. Dates use the AYYYYDDD composite format. The km
// extents widen the subset around the configured point.
type SubsetRequest struct {
	Band         string
	StartDate    string
	EndDate      string
	KmAboveBelow int
	KmLeftRight  int
}

// ProductData retrieves pixel values for a band over a date range.
func (c *Client) ProductData(ctx context.Context, req *SubsetRequest) (*Subset, error) {
	if req == nil || req.Band == "" || req.StartDate == "" || req.EndDate == "" {
		return nil, apierror.NewValidationError("band, start date and end date are required")
	}

	query := c.location()
	query.Set("band", req.Band)
	query.Set("startDate", req.StartDate)
	query.Set("endDate", req.EndDate)
	query.Set("kmAboveBelow", strconv.Itoa(req.KmAboveBelow))
	query.Set("kmLeftRight", strconv.Itoa(req.KmLeftRight))

	var subset Subset
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/%s/subset", url.PathEscape(c.product)),
		Query:  query,
	}, &subset)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return &subset, nil
}
