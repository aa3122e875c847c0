package powerbi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// WorkspacesService manages Power BI workspaces (groups) and their users.
type WorkspacesService struct {
	client *Client
}

// Workspace is a Power BI workspace.
type Workspace struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Type                  string `json:"type"`
	IsReadOnly            bool   `json:"isReadOnly"`
	IsOnDedicatedCapacity bool   `json:"isOnDedicatedCapacity"`
}

// WorkspaceUser is a user's access entry in a workspace.
type WorkspaceUser struct {
	EmailAddress         string `json:"emailAddress"`
	GroupUserAccessRight string `json:"groupUserAccessRight"`
	DisplayName          string `json:"displayName"`
	Identifier           string `json:"identifier"`
	PrincipalType        string `json:"principalType"`
}

// Access levels assignable to workspace users.
const (
	AccessAdmin       = "Admin"
	AccessContributor = "Contributor"
	AccessMember      = "Member"
)

func validAccess(access string) bool {
	switch access {
	case AccessAdmin, AccessContributor, AccessMember:
		return true
	}
	return false
}

// List retrieves all workspaces the signed-in account has access to.
func (s *WorkspacesService) List(ctx context.Context) ([]Workspace, error) {
	var result struct {
		Value []Workspace `json:"value"`
	}
	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/groups",
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Value, nil
}

// Get retrieves a workspace by ID. The API has no single-workspace
// endpoint for this, so the workspace is picked out of the full list.
func (s *WorkspacesService) Get(ctx context.Context, workspaceID string) (*Workspace, error) {
	if workspaceID == "" {
		return nil, apierror.NewValidationError("workspace ID cannot be empty")
	}

	workspaces, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, ws := range workspaces {
		if ws.ID == workspaceID {
			return &ws, nil
		}
	}
	return nil, &apierror.NotFoundError{
		APIError:     apierror.APIError{Message: "workspace not found"},
		ResourceType: "workspace",
		ResourceID:   workspaceID,
	}
}

// ListUsers retrieves the users of a workspace.
func (s *WorkspacesService) ListUsers(ctx context.Context, workspaceID string) ([]WorkspaceUser, error) {
	if workspaceID == "" {
		return nil, apierror.NewValidationError("workspace ID cannot be empty")
	}

	var result struct {
		Value []WorkspaceUser `json:"value"`
	}
	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/users",
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Value, nil
}

type workspaceUserRequest struct {
	UserEmailAddress     string `json:"userEmailAddress"`
	GroupUserAccessRight string `json:"groupUserAccessRight"`
}

// AddUser grants a user access to a workspace. Access must be one of
// AccessAdmin, AccessContributor or AccessMember.
func (s *WorkspacesService) AddUser(ctx context.Context, workspaceID, email, access string) error {
	return s.sendUser(ctx, http.MethodPost, workspaceID, email, access)
}

// UpdateUser changes a user's access level in a workspace.
func (s *WorkspacesService) UpdateUser(ctx context.Context, workspaceID, email, access string) error {
	return s.sendUser(ctx, http.MethodPut, workspaceID, email, access)
}

func (s *WorkspacesService) sendUser(ctx context.Context, method, workspaceID, email, access string) error {
	if workspaceID == "" || email == "" {
		return apierror.NewValidationError("workspace ID and email are required")
	}
	if !validAccess(access) {
		return apierror.NewValidationError("access must be %q, %q or %q", AccessAdmin, AccessContributor, AccessMember)
	}

	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: method,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/users",
		Body: workspaceUserRequest{
			UserEmailAddress:     email,
			GroupUserAccessRight: access,
		},
	}, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return nil
}
