package reliefweb

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// ReportQuery describes a ListReports search.
type ReportQuery struct {
	// StartDate and EndDate bound date.original, both YYYY-MM-DD.
	StartDate string
	EndDate   string

	// Value is the search text, equivalent to the ReliefWeb search bar.
	Value string

	// Fields to search in. Defaults to body and title.
	Fields []string

	// Operator joins multiple search keywords; "OR" (default) or "AND".
	Operator string

	// Countries filters content by ISO3 country code.
	Countries []string

	// Languages filters by language code ("en", "fr", "es", "ar", "ru",
	// "ot"). Defaults to en; set IncludeAllLanguages to skip the filter.
	Languages           []string
	IncludeAllLanguages bool
}

// Report is the flattened representation of a ReliefWeb report record.
type Report struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceName string `json:"source_name"`
	Language   string `json:"language"`
	Date       string `json:"date"`
	URL        string `json:"url"`
}

// RawRecord is an unflattened API record: the id, the canonical href and
// the requested fields as returned by the API.
type RawRecord struct {
	ID     string          `json:"id"`
	Href   string          `json:"href"`
	Fields json.RawMessage `json:"fields"`
}

type recordFields struct {
	Title  string `json:"title"`
	Source []struct {
		Name string `json:"name"`
	} `json:"source"`
	Language []struct {
		Name string `json:"name"`
	} `json:"language"`
	Date struct {
		Original string `json:"original"`
	} `json:"date"`
}

type filterCondition struct {
	Field    string `json:"field"`
	Value    any    `json:"value"`
	Operator string `json:"operator,omitempty"`
}

type listRequest struct {
	Preset string `json:"preset"`
	Limit  int    `json:"limit"`
	Query  struct {
		Value    string   `json:"value"`
		Fields   []string `json:"fields"`
		Operator string   `json:"operator"`
	} `json:"query"`
	Filter struct {
		Operator   string            `json:"operator"`
		Conditions []filterCondition `json:"conditions"`
	} `json:"filter"`
	Fields struct {
		Include []string `json:"include"`
	} `json:"fields"`
}

const dateFormat = "2006-01-02"

// ListReports searches reports matching the query and returns the flattened
// records. Use ListReportsRaw for the unmodified API records.
func (c *Client) ListReports(ctx context.Context, query *ReportQuery) ([]Report, error) {
	records, err := c.ListReportsRaw(ctx, query)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(records))
	for _, record := range records {
		var fields recordFields
		if err := json.Unmarshal(record.Fields, &fields); err != nil {
			return nil, err
		}

		sources := make([]string, len(fields.Source))
		for i, s := range fields.Source {
			sources[i] = s.Name
		}
		languages := make([]string, len(fields.Language))
		for i, l := range fields.Language {
			languages[i] = l.Name
		}

		reports = append(reports, Report{
			ID:         record.ID,
			Title:      fields.Title,
			SourceName: strings.Join(sources, " / "),
			Language:   strings.Join(languages, " / "),
			Date:       fields.Date.Original,
			URL:        record.Href,
		})
	}
	return reports, nil
}

// ListReportsRaw searches reports matching the query and returns the raw API
// records from the data envelope.
func (c *Client) ListReportsRaw(ctx context.Context, query *ReportQuery) ([]RawRecord, error) {
	if query == nil {
		return nil, apierror.NewValidationError("report query cannot be nil")
	}

	operator := query.Operator
	if operator == "" {
		operator = "OR"
	}
	if !slices.Contains([]string{"OR", "AND"}, operator) {
		return nil, apierror.NewValidationError("value %q not allowed for operator, allowed values are: OR, AND", operator)
	}

	if _, err := time.Parse(dateFormat, query.StartDate); err != nil {
		return nil, apierror.NewValidationError("invalid date %q: dates must be in YYYY-MM-DD format", query.StartDate)
	}
	if _, err := time.Parse(dateFormat, query.EndDate); err != nil {
		return nil, apierror.NewValidationError("invalid date %q: dates must be in YYYY-MM-DD format", query.EndDate)
	}

	fields := query.Fields
	if fields == nil {
		fields = []string{"body", "title"}
	}

	conditions := []filterCondition{
		{
			Field: "date.original",
			Value: map[string]string{
				"from": query.StartDate + "T00:00:00+00:00",
				"to":   query.EndDate + "T23:59:59+00:00",
			},
		},
	}
	if len(query.Countries) > 0 {
		conditions = append(conditions, filterCondition{
			Field:    "country.iso3",
			Value:    query.Countries,
			Operator: "OR",
		})
	}
	if !query.IncludeAllLanguages {
		languages := query.Languages
		if len(languages) == 0 {
			languages = []string{"en"}
		}
		conditions = append(conditions, filterCondition{
			Field:    "language.code",
			Value:    languages,
			Operator: "OR",
		})
	}

	body := &listRequest{
		Preset: c.preset,
		Limit:  c.limit,
	}
	body.Query.Value = query.Value
	body.Query.Fields = fields
	body.Query.Operator = operator
	body.Filter.Operator = "AND"
	body.Filter.Conditions = conditions
	body.Fields.Include = []string{"source.name", "date", "language.name", "country.iso3"}

	var result struct {
		Data []RawRecord `json:"data"`
	}
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/reports",
		Body:   body,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}

	return result.Data, nil
}

// GetReport fetches the full report behind href (typically the URL from a
// ListReports result) using the client's field profile. The report payload
// is returned as the raw data envelope contents.
func (c *Client) GetReport(ctx context.Context, href string) ([]map[string]any, error) {
	if href == "" {
		return nil, apierror.NewValidationError("report href cannot be empty")
	}

	var result struct {
		Data []map[string]any `json:"data"`
	}
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   href,
		Query:  c.profileQuery(),
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}

	return result.Data, nil
}
