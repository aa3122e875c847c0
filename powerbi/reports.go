package powerbi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// ReportsService manages reports within a workspace.
type ReportsService struct {
	client *Client
}

// Report is a Power BI report.
type Report struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	WebURL     string `json:"webUrl"`
	EmbedURL   string `json:"embedUrl"`
	DatasetID  string `json:"datasetId"`
	ReportType string `json:"reportType"`
}

// Name conflict strategies accepted by Import.
const (
	ConflictCreateOrOverwrite  = "CreateOrOverwrite"
	ConflictGenerateUniqueName = "GenerateUniqueName"
	ConflictIgnore             = "Ignore"
	ConflictOverwrite          = "Overwrite"
)

func validNameConflict(nameConflict string) bool {
	switch nameConflict {
	case ConflictCreateOrOverwrite, ConflictGenerateUniqueName, ConflictIgnore, ConflictOverwrite:
		return true
	}
	return false
}

// List retrieves the reports in a workspace.
func (s *ReportsService) List(ctx context.Context, workspaceID string) ([]Report, error) {
	if workspaceID == "" {
		return nil, apierror.NewValidationError("workspace ID cannot be empty")
	}

	var result struct {
		Value []Report `json:"value"`
	}
	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/reports",
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Value, nil
}

// Get retrieves a single report.
func (s *ReportsService) Get(ctx context.Context, workspaceID, reportID string) (*Report, error) {
	if workspaceID == "" || reportID == "" {
		return nil, apierror.NewValidationError("workspace ID and report ID are required")
	}

	var report Report
	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/reports/" + url.PathEscape(reportID),
	}, &report)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &apierror.NotFoundError{
			APIError:     apierror.APIError{StatusCode: http.StatusNotFound, Message: "report not found"},
			ResourceType: "report",
			ResourceID:   reportID,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return &report, nil
}

// Delete removes a report from a workspace.
func (s *ReportsService) Delete(ctx context.Context, workspaceID, reportID string) error {
	if workspaceID == "" || reportID == "" {
		return apierror.NewValidationError("workspace ID and report ID are required")
	}

	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodDelete,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/reports/" + url.PathEscape(reportID),
	}, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return nil
}

// Export streams the report's .pbix content to w.
func (s *ReportsService) Export(ctx context.Context, workspaceID, reportID string, w io.Writer) error {
	if workspaceID == "" || reportID == "" {
		return apierror.NewValidationError("workspace ID and report ID are required")
	}
	if err := s.client.ensureToken(ctx); err != nil {
		return err
	}

	body, resp, err := s.client.transport.Stream(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/reports/" + url.PathEscape(reportID) + "/export",
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
		return fmt.Errorf("writing report export: %w", err)
	}
	return nil
}

// ExportToFile downloads the report's .pbix content to the given path.
func (s *ReportsService) ExportToFile(ctx context.Context, workspaceID, reportID, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}

	if err := s.Export(ctx, workspaceID, reportID, file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

// Import is the import job created by an upload.
type Import struct {
	ID string `json:"id"`
}

// Import uploads report content into a workspace as a multipart form. The
// display name becomes the dataset name; nameConflict must be one of the
// Conflict constants.
func (s *ReportsService) Import(ctx context.Context, workspaceID, displayName, nameConflict string, content io.Reader) (*Import, error) {
	if workspaceID == "" || displayName == "" {
		return nil, apierror.NewValidationError("workspace ID and display name are required")
	}
	if !validNameConflict(nameConflict) {
		return nil, apierror.NewValidationError("invalid name conflict strategy %q", nameConflict)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", displayName+".pbix")
	if err != nil {
		return nil, fmt.Errorf("building import form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("building import form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("building import form: %w", err)
	}

	query := url.Values{}
	query.Set("datasetDisplayName", displayName)
	query.Set("nameConflict", nameConflict)

	var imported Import
	resp, err := s.client.doJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    "/groups/" + url.PathEscape(workspaceID) + "/imports",
		Query:   query,
		Body:    buf.Bytes(),
		Headers: http.Header{"Content-Type": {form.FormDataContentType()}},
	}, &imported)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return &imported, nil
}

// ImportFile uploads a .pbix file from disk. The file's base name (without
// extension) becomes the display name.
func (s *ReportsService) ImportFile(ctx context.Context, workspaceID, path, nameConflict string) (*Import, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report file: %w", err)
	}
	defer file.Close()

	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = name[:len(name)-len(ext)]
	}
	return s.Import(ctx, workspaceID, name, nameConflict, file)
}

type cloneRequest struct {
	Name              string `json:"name"`
	TargetWorkspaceID string `json:"targetWorkspaceId,omitempty"`
}

// Clone copies a report. When targetWorkspaceID is empty the clone stays
// in the source workspace.
func (s *ReportsService) Clone(ctx context.Context, workspaceID, reportID, name, targetWorkspaceID string) (*Report, error) {
	if workspaceID == "" || reportID == "" || name == "" {
		return nil, apierror.NewValidationError("workspace ID, report ID and name are required")
	}

	var cloned Report
	resp, err := s.client.doJSON(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/groups/" + url.PathEscape(workspaceID) + "/reports/" + url.PathEscape(reportID) + "/clone",
		Body: cloneRequest{
			Name:              name,
			TargetWorkspaceID: targetWorkspaceID,
		},
	}, &cloned)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return &cloned, nil
}
