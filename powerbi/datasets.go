package powerbi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// DatasetsService manages datasets within a workspace.
type DatasetsService struct {
	client *Client
}

// Dataset is a Power BI dataset.
type Dataset struct {
	ID                               string `json:"id"`
	Name                             string `json:"name"`
	WebURL                           string `json:"webUrl"`
	ConfiguredBy                     string `json:"configuredBy"`
	IsRefreshable                    bool   `json:"isRefreshable"`
	IsEffectiveIdentityRequired      bool   `json:"isEffectiveIdentityRequired"`
	IsEffectiveIdentityRolesRequired bool   `json:"isEffectiveIdentityRolesRequired"`
}

// DatasetUser is a user's access entry on a dataset.
type DatasetUser struct {
	Identifier             string `json:"identifier"`
	PrincipalType          string `json:"principalType"`
	DatasetUserAccessRight string `json:"datasetUserAccessRight"`
}

// Refresh notification options.
const (
	NotifyMailOnCompletion = "MailOnCompletion"
	NotifyMailOnFailure    = "MailOnFailure"
	NotifyNoNotification   = "NoNotification"
)

// List retrieves the datasets in a workspace.
func (s *DatasetsService) List(ctx context.Context, workspaceID string) ([]Dataset, error) {
	if workspaceID == "" {
		return nil, apierror.NewValidationError("workspace ID cannot be empty")
	}

	var result struct {
		Value []Dataset `json:"value"`
	}
	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/datasets",
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Value, nil
}

// Get retrieves a single dataset.
func (s *DatasetsService) Get(ctx context.Context, workspaceID, datasetID string) (*Dataset, error) {
	if workspaceID == "" || datasetID == "" {
		return nil, apierror.NewValidationError("workspace ID and dataset ID are required")
	}

	var dataset Dataset
	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/datasets/" + url.PathEscape(datasetID),
	}, &dataset)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &apierror.NotFoundError{
			APIError:     apierror.APIError{StatusCode: http.StatusNotFound, Message: "dataset not found"},
			ResourceType: "dataset",
			ResourceID:   datasetID,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return &dataset, nil
}

// ListUsers retrieves the users of a dataset.
func (s *DatasetsService) ListUsers(ctx context.Context, workspaceID, datasetID string) ([]DatasetUser, error) {
	if workspaceID == "" || datasetID == "" {
		return nil, apierror.NewValidationError("workspace ID and dataset ID are required")
	}

	var result struct {
		Value []DatasetUser `json:"value"`
	}
	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/datasets/" + url.PathEscape(datasetID) + "/users",
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Value, nil
}

// Delete removes a dataset from a workspace.
func (s *DatasetsService) Delete(ctx context.Context, workspaceID, datasetID string) error {
	if workspaceID == "" || datasetID == "" {
		return apierror.NewValidationError("workspace ID and dataset ID are required")
	}

	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodDelete,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/datasets/" + url.PathEscape(datasetID),
	}, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return nil
}

type refreshRequest struct {
	NotifyOption string `json:"notifyOption"`
}

// Refresh triggers a dataset refresh. notifyOption defaults to
// NotifyNoNotification when empty.
func (s *DatasetsService) Refresh(ctx context.Context, workspaceID, datasetID, notifyOption string) error {
	if workspaceID == "" || datasetID == "" {
		return apierror.NewValidationError("workspace ID and dataset ID are required")
	}
	if notifyOption == "" {
		notifyOption = NotifyNoNotification
	}

	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/datasets/" + url.PathEscape(datasetID) + "/refreshes",
		Body:   refreshRequest{NotifyOption: notifyOption},
	}, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return nil
}
