package dhis2

import (
	"context"
	"net/http"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// Content types accepted by the data value set import endpoint.
const (
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"
	ContentTypeCSV  = "application/csv"
)

// DataValuesService sends and retrieves aggregate data values.
type DataValuesService struct {
	transport *api.Transport
}

// DataValue is a single aggregate data value.
type DataValue struct {
	DataElement          string `json:"dataElement"`
	Period               string `json:"period,omitempty"`
	OrgUnit              string `json:"orgUnit,omitempty"`
	CategoryOptionCombo  string `json:"categoryOptionCombo,omitempty"`
	AttributeOptionCombo string `json:"attributeOptionCombo,omitempty"`
	Value                string `json:"value"`
	Comment              string `json:"comment,omitempty"`
}

// DataValueSet is a collection of data values imported together.
type DataValueSet struct {
	DataSet              string      `json:"dataSet,omitempty"`
	CompleteDate         string      `json:"completeDate,omitempty"`
	Period               string      `json:"period,omitempty"`
	OrgUnit              string      `json:"orgUnit,omitempty"`
	AttributeOptionCombo string      `json:"attributeOptionCombo,omitempty"`
	DataValues           []DataValue `json:"dataValues"`
}

// ImportSummary is the server's summary of a data value import.
type ImportSummary struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	ImportCount struct {
		Imported int `json:"imported"`
		Updated  int `json:"updated"`
		Ignored  int `json:"ignored"`
		Deleted  int `json:"deleted"`
	} `json:"importCount"`
	Conflicts []struct {
		Object string `json:"object"`
		Value  string `json:"value"`
	} `json:"conflicts"`
}

// SendDataValueSet imports a data value set as JSON. Import options such
// as dryRun or importStrategy go in params.
func (s *DataValuesService) SendDataValueSet(ctx context.Context, set *DataValueSet, params Params) (*ImportSummary, error) {
	if set == nil || len(set.DataValues) == 0 {
		return nil, apierror.NewValidationError("data value set must contain at least one value")
	}

	var summary ImportSummary
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/api/dataValueSets",
		Query:  params.values(),
		Body:   set,
	}, &summary)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return &summary, nil
}

// SendDataValueSetRaw imports a pre-encoded data value set payload. The
// content type must be one of ContentTypeJSON, ContentTypeXML or
// ContentTypeCSV. The raw response body is returned so callers can parse
// format-specific import summaries.
func (s *DataValuesService) SendDataValueSetRaw(ctx context.Context, contentType string, payload []byte, params Params) ([]byte, error) {
	switch contentType {
	case ContentTypeJSON, ContentTypeXML, ContentTypeCSV:
	default:
		return nil, apierror.NewValidationError("unsupported content type %q", contentType)
	}
	if len(payload) == 0 {
		return nil, apierror.NewValidationError("payload cannot be empty")
	}

	resp, err := s.transport.Do(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    "/api/dataValueSets",
		Query:   params.values(),
		Body:    payload,
		Headers: http.Header{"Content-Type": {contentType}},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return resp.Body, nil
}

// GetDataValueSet exports data values. Selection criteria such as dataSet,
// period and orgUnit go in params.
func (s *DataValuesService) GetDataValueSet(ctx context.Context, params Params) (*DataValueSet, error) {
	var set DataValueSet
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/api/dataValueSets",
		Query:  params.values(),
	}, &set)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return &set, nil
}

// DataValueKey identifies a single data value.
type DataValueKey struct {
	DataElement          string
	Period               string
	OrgUnit              string
	CategoryOptionCombo  string
	AttributeOptionCombo string
}

func (k *DataValueKey) validate() error {
	if k == nil || k.DataElement == "" || k.Period == "" || k.OrgUnit == "" {
		return apierror.NewValidationError("data element, period and org unit are required")
	}
	return nil
}

func (k *DataValueKey) query() Params {
	return Params{
		"de": k.DataElement,
		"pe": k.Period,
		"ou": k.OrgUnit,
		"co": k.CategoryOptionCombo,
		"cc": k.AttributeOptionCombo,
	}
}

// SendDataValue writes a single data value.
func (s *DataValuesService) SendDataValue(ctx context.Context, key *DataValueKey, value string) error {
	if err := key.validate(); err != nil {
		return err
	}

	params := key.query()
	params["value"] = value

	resp, err := s.transport.Do(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/api/dataValues",
		Query:  params.values(),
	})
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return nil
}

// GetDataValue reads a single data value. The API returns the stored
// values as a list of strings.
func (s *DataValuesService) GetDataValue(ctx context.Context, key *DataValueKey) ([]string, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}

	var values []string
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/api/dataValues",
		Query:  key.query().values(),
	}, &values)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return values, nil
}

// DeleteDataValue removes a single data value.
func (s *DataValuesService) DeleteDataValue(ctx context.Context, key *DataValueKey) error {
	if err := key.validate(); err != nil {
		return err
	}

	resp, err := s.transport.Do(ctx, &api.Request{
		Method: http.MethodDelete,
		Path:   "/api/dataValues",
		Query:  key.query().values(),
	})
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return nil
}
