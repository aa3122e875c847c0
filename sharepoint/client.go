// Package sharepoint provides a client for the SharePoint REST API,
// covering folder listing and file downloads.
//
// The client authenticates with a caller-supplied bearer token; acquiring
// one (via azidentity or another flow) is the caller's responsibility.
package sharepoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
	"github.com/MSF-Collaborate/msf-toolbox/internal/auth"
)

const defaultTimeout = 60 * time.Second

// Sentinel errors for common failure modes.
var (
	ErrNoSiteURL = errors.New("sharepoint: no site URL configured")
	ErrNoToken   = errors.New("sharepoint: no access token configured")
)

// Client is the SharePoint API client, scoped to one site.
type Client struct {
	transport *api.Transport
}

// Option configures a Client.
type Option func(*config)

type config struct {
	siteURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// WithSiteURL sets the SharePoint site URL, e.g.
// "https://contoso.sharepoint.com/sites/field-reports".
func WithSiteURL(url string) Option {
	return func(c *config) { c.siteURL = url }
}

// WithAccessToken sets the bearer token used for authentication.
func WithAccessToken(token string) Option {
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

// New creates a new SharePoint client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.siteURL == "" {
		return nil, ErrNoSiteURL
	}
	if cfg.token == "" {
		return nil, ErrNoToken
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	transport, err := api.NewTransport(cfg.siteURL, &auth.Token{
		Scheme: "Bearer",
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

// BaseURL returns the configured site URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// File is the metadata of a file in a document library.
type File struct {
	Name              string `json:"Name"`
	ServerRelativeURL string `json:"ServerRelativeUrl"`
	Length            string `json:"Length"`
	TimeCreated       string `json:"TimeCreated"`
	TimeLastModified  string `json:"TimeLastModified"`
	UniqueID          string `json:"UniqueId"`
}

// Folder is the metadata of a folder in a document library.
type Folder struct {
	Name              string `json:"Name"`
	ServerRelativeURL string `json:"ServerRelativeUrl"`
	ItemCount         int    `json:"ItemCount"`
}

// escapeRelativeURL quotes a server-relative URL for embedding in an OData
// method call. Single quotes double up.
func escapeRelativeURL(relativeURL string) string {
	return strings.ReplaceAll(relativeURL, "'", "''")
}

// ListFiles retrieves the files of a folder identified by its
// server-relative URL.
func (c *Client) ListFiles(ctx context.Context, folderURL string) ([]File, error) {
	if folderURL == "" {
		return nil, apierror.NewValidationError("folder URL cannot be empty")
	}

	var result struct {
		Value []File `json:"value"`
	}
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/_api/web/GetFolderByServerRelativeUrl('%s')/Files", escapeRelativeURL(folderURL)),
		Headers: odataHeaders(),
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Value, nil
}

// ListFileURLs retrieves only the server-relative URLs of the files in a
// folder.
func (c *Client) ListFileURLs(ctx context.Context, folderURL string) ([]string, error) {
	files, err := c.ListFiles(ctx, folderURL)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(files))
	for _, file := range files {
		urls = append(urls, file.ServerRelativeURL)
	}
	return urls, nil
}

// ListFolders retrieves the subfolders of a folder.
func (c *Client) ListFolders(ctx context.Context, folderURL string) ([]Folder, error) {
	if folderURL == "" {
		return nil, apierror.NewValidationError("folder URL cannot be empty")
	}

	var result struct {
		Value []Folder `json:"value"`
	}
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/_api/web/GetFolderByServerRelativeUrl('%s')/Folders", escapeRelativeURL(folderURL)),
		Headers: odataHeaders(),
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Value, nil
}

// Download streams the content of a file to w.
func (c *Client) Download(ctx context.Context, fileURL string, w io.Writer) error {
	if fileURL == "" {
		return apierror.NewValidationError("file URL cannot be empty")
	}

	body, resp, err := c.transport.Stream(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/_api/web/GetFileByServerRelativeUrl('%s')/$value", escapeRelativeURL(fileURL)),
	})
	if err != nil {
		return err
	}
	defer body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(body, 1<<20))
		return apierror.Parse(resp.StatusCode, raw, resp.Header)
	}

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("writing file content: %w", err)
	}
	return nil
}

// DownloadToFile saves the content of a SharePoint file to a local path.
func (c *Client) DownloadToFile(ctx context.Context, fileURL, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}

	if err := c.Download(ctx, fileURL, file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

func odataHeaders() http.Header {
	return http.Header{"Accept": {"application/json;odata=nometadata"}}
}
