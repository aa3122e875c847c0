package topdesk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// Defaults applied to incident listing.
const (
	defaultPageSize   = 10
	defaultSort       = "creationDate:desc"
	defaultDateFormat = "iso8601"
)

// Incident is a TopDesk incident. Fields beyond the common set stay in Raw.
type Incident struct {
	ID               string `json:"id"`
	Number           string `json:"number"`
	BriefDescription string `json:"briefDescription"`
	Request          string `json:"request"`
	CreationDate     string `json:"creationDate"`
	Status           string `json:"status"`
	Caller           struct {
		ID          string `json:"id"`
		DynamicName string `json:"dynamicName"`
	} `json:"caller"`
	Operator struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"operator"`
	ProcessingStatus struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"processingStatus"`
}

// ListOptions controls incident listing: FIQL filtering, paging, sorting
// and field selection. Extra holds additional query parameters; empty
// values are omitted.
type ListOptions struct {
	FIQLQuery  string
	Offset     int
	PageSize   int
	Sort       string
	Fields     string
	DateFormat string
	Extra      map[string]string
}

func (o *ListOptions) query() url.Values {
	opts := o
	if opts == nil {
		opts = &ListOptions{}
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	sort := opts.Sort
	if sort == "" {
		sort = defaultSort
	}
	dateFormat := opts.DateFormat
	if dateFormat == "" {
		dateFormat = defaultDateFormat
	}

	v := url.Values{}
	v.Set("pageSize", strconv.Itoa(pageSize))
	v.Set("start", strconv.Itoa(opts.Offset))
	v.Set("sort", sort)
	v.Set("dateFormat", dateFormat)
	if opts.Fields != "" {
		v.Set("fields", opts.Fields)
	}
	if opts.FIQLQuery != "" {
		v.Set("query", opts.FIQLQuery)
	}
	for key, value := range opts.Extra {
		if value != "" {
			v.Set(key, value)
		}
	}
	return v
}

// ListIncidents retrieves incidents matching the given options. An empty
// result (204 from the API) yields an empty slice.
func (c *Client) ListIncidents(ctx context.Context, opts *ListOptions) ([]Incident, error) {
	var incidents []Incident
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/tas/api/incidents",
		Query:  opts.query(),
	}, &incidents)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return []Incident{}, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return incidents, nil
}

// GetIncident retrieves an incident by UUID or incident number.
func (c *Client) GetIncident(ctx context.Context, ref string) (*Incident, error) {
	if ref == "" {
		return nil, apierror.NewValidationError("incident reference cannot be empty")
	}

	var incident Incident
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   incidentPath(ref, ""),
	}, &incident)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &apierror.NotFoundError{
			APIError:     apierror.APIError{StatusCode: http.StatusNotFound, Message: "incident not found"},
			ResourceType: "incident",
			ResourceID:   ref,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return &incident, nil
}

// Action is an action (progress trail entry) on an incident.
type Action map[string]any

// ListIncidentActions retrieves the actions of an incident. Optional query
// parameters (start, page_size, inlineimages) go in params; empty values
// are omitted.
func (c *Client) ListIncidentActions(ctx context.Context, ref string, params map[string]string) ([]Action, error) {
	if ref == "" {
		return nil, apierror.NewValidationError("incident reference cannot be empty")
	}

	var actions []Action
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   incidentPath(ref, "/actions"),
		Query:  nonEmpty(params),
	}, &actions)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return []Action{}, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return actions, nil
}

// Request is an end-user request attached to an incident.
type Request map[string]any

// ListIncidentRequests retrieves the requests of an incident. The incident
// must be referenced by UUID.
func (c *Client) ListIncidentRequests(ctx context.Context, id string, params map[string]string) ([]Request, error) {
	if id == "" {
		return nil, apierror.NewValidationError("incident ID cannot be empty")
	}

	var requests []Request
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/tas/api/incidents/id/" + url.PathEscape(id) + "/requests",
		Query:  nonEmpty(params),
	}, &requests)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return []Request{}, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return requests, nil
}

func nonEmpty(params map[string]string) url.Values {
	v := url.Values{}
	for key, value := range params {
		if value != "" {
			v.Set(key, value)
		}
	}
	return v
}
