package dhis2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// MetadataService retrieves DHIS2 metadata: organisation units, data sets,
// programs, indicators, data elements, option sets and predictors.
type MetadataService struct {
	transport *api.Transport
}

// Resource is a generic metadata record. Field presence depends on the
// "fields" parameter sent with the request.
type Resource map[string]any

// OrganisationUnit is an organisation unit record.
type OrganisationUnit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`

	// NamePath is the human-readable hierarchy path, filled in by
	// AddOrganisationUnitNamePath.
	NamePath string `json:"namePath,omitempty"`
}

// list fetches a paged metadata collection. The DHIS2 API wraps the items
// in an envelope keyed by the resource name.
func (s *MetadataService) list(ctx context.Context, resource string, params Params) ([]Resource, error) {
	var envelope map[string]json.RawMessage
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/api/" + resource,
		Query:  params.values(),
	}, &envelope)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}

	raw, ok := envelope[resource]
	if !ok {
		return []Resource{}, nil
	}
	var items []Resource
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling %s: %w", resource, err)
	}
	return items, nil
}

// ListOrganisationUnits retrieves organisation units.
func (s *MetadataService) ListOrganisationUnits(ctx context.Context, params Params) ([]OrganisationUnit, error) {
	var envelope struct {
		OrganisationUnits []OrganisationUnit `json:"organisationUnits"`
	}
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/api/organisationUnits",
		Query:  params.values(),
	}, &envelope)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return envelope.OrganisationUnits, nil
}

// AddOrganisationUnitNamePath fills in the NamePath of each unit by
// resolving the UIDs in its Path against the full organisation unit
// hierarchy. Names are joined with " > ".
func (s *MetadataService) AddOrganisationUnitNamePath(ctx context.Context, units []OrganisationUnit) error {
	all, err := s.ListOrganisationUnits(ctx, Params{
		"paging": "false",
		"fields": "id,name",
	})
	if err != nil {
		return err
	}

	names := make(map[string]string, len(all))
	for _, unit := range all {
		names[unit.ID] = unit.Name
	}

	for i := range units {
		segments := strings.Split(strings.Trim(units[i].Path, "/"), "/")
		parts := make([]string, 0, len(segments))
		for _, uid := range segments {
			if name, ok := names[uid]; ok {
				parts = append(parts, name)
			}
		}
		units[i].NamePath = strings.Join(parts, " > ")
	}
	return nil
}

// GetOrganisationUnit retrieves a single organisation unit with its
// children included.
func (s *MetadataService) GetOrganisationUnit(ctx context.Context, uid string, params Params) (Resource, error) {
	if uid == "" {
		return nil, apierror.NewValidationError("organisation unit UID cannot be empty")
	}
	query := params.values()
	query.Set("includeChildren", "true")

	var unit Resource
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/api/organisationUnits/" + url.PathEscape(uid),
		Query:  query,
	}, &unit)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &apierror.NotFoundError{
			APIError:     apierror.APIError{StatusCode: http.StatusNotFound, Message: "organisation unit not found"},
			ResourceType: "organisationUnit",
			ResourceID:   uid,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return unit, nil
}

// ListDataSets retrieves data sets.
func (s *MetadataService) ListDataSets(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "dataSets", params)
}

// ListPrograms retrieves programs.
func (s *MetadataService) ListPrograms(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "programs", params)
}

// ListProgramStages retrieves program stages.
func (s *MetadataService) ListProgramStages(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "programStages", params)
}

// ListProgramRules retrieves program rules.
func (s *MetadataService) ListProgramRules(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "programRules", params)
}

// ListIndicators retrieves indicators.
func (s *MetadataService) ListIndicators(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "indicators", params)
}

// ListIndicatorGroups retrieves indicator groups.
func (s *MetadataService) ListIndicatorGroups(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "indicatorGroups", params)
}

// ListProgramIndicators retrieves program indicators.
func (s *MetadataService) ListProgramIndicators(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "programIndicators", params)
}

// ListProgramIndicatorGroups retrieves program indicator groups.
func (s *MetadataService) ListProgramIndicatorGroups(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "programIndicatorGroups", params)
}

// ListDataElements retrieves data elements.
func (s *MetadataService) ListDataElements(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "dataElements", params)
}

// ListDataElementGroups retrieves data element groups.
func (s *MetadataService) ListDataElementGroups(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "dataElementGroups", params)
}

// ListOptionSets retrieves option sets.
func (s *MetadataService) ListOptionSets(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "optionSets", params)
}

// ListOptions retrieves options.
func (s *MetadataService) ListOptions(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "options", params)
}

// ListPredictors retrieves predictors.
func (s *MetadataService) ListPredictors(ctx context.Context, params Params) ([]Resource, error) {
	return s.list(ctx, "predictors", params)
}

// ListDataElementsForOrgUnit retrieves the data elements collected at an
// organisation unit, by walking the data sets assigned to it.
func (s *MetadataService) ListDataElementsForOrgUnit(ctx context.Context, orgUnitUID string) ([]Resource, error) {
	if orgUnitUID == "" {
		return nil, apierror.NewValidationError("organisation unit UID cannot be empty")
	}

	var unit struct {
		DataSets []struct {
			ID string `json:"id"`
		} `json:"dataSets"`
	}
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/api/organisationUnits/" + url.PathEscape(orgUnitUID),
		Query:  url.Values{"fields": {"dataSets"}},
	}, &unit)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}

	elements := make([]Resource, 0)
	seen := make(map[string]bool)
	for _, dataSet := range unit.DataSets {
		var detail struct {
			DataSetElements []struct {
				DataElement Resource `json:"dataElement"`
			} `json:"dataSetElements"`
		}
		resp, err := s.transport.DoJSON(ctx, &api.Request{
			Method: http.MethodGet,
			Path:   "/api/dataSets/" + url.PathEscape(dataSet.ID),
			Query:  url.Values{"fields": {"dataSetElements[dataElement]"}},
		}, &detail)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
		}

		for _, element := range detail.DataSetElements {
			id, _ := element.DataElement["id"].(string)
			if id != "" && seen[id] {
				continue
			}
			seen[id] = true
			elements = append(elements, element.DataElement)
		}
	}
	return elements, nil
}

// Export retrieves a metadata export. The params control which metadata
// types are included, e.g. Params{"dataElements": "true"}.
func (s *MetadataService) Export(ctx context.Context, params Params) (map[string]any, error) {
	var export map[string]any
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/api/metadata",
		Query:  params.values(),
	}, &export)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return export, nil
}
