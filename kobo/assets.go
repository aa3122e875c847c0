package kobo

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// Asset is a Kobo asset (survey) summary as returned by the asset list.
type Asset struct {
	UID             string `json:"uid"`
	Name            string `json:"name"`
	AssetType       string `json:"asset_type"`
	OwnerUsername   string `json:"owner__username"`
	DeploymentCount int    `json:"deployment__submission_count"`
	URL             string `json:"url"`
}

// AssetDetail is a full asset, including the survey content used for
// metadata extraction.
type AssetDetail struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	Content struct {
		Survey  []surveyItem `json:"survey"`
		Choices []choiceItem `json:"choices"`
	} `json:"content"`

	// Raw preserves the full asset document.
	Raw map[string]any `json:"-"`
}

type surveyItem struct {
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	XPath    string          `json:"$xpath"`
	Label    []string        `json:"label"`
	Hint     []string        `json:"hint"`
	Required json.RawMessage `json:"required"`
}

type choiceItem struct {
	ListName string   `json:"list_name"`
	Name     string   `json:"name"`
	Label    []string `json:"label"`
}

// ListAssets retrieves all assets available to the authenticated user.
func (c *Client) ListAssets(ctx context.Context) ([]Asset, error) {
	var result struct {
		Results []Asset `json:"results"`
	}
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/assets/",
		Query:  jsonFormat(),
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	return result.Results, nil
}

// GetAssetUID resolves an asset name to its UID.
func (c *Client) GetAssetUID(ctx context.Context, assetName string) (string, error) {
	assets, err := c.ListAssets(ctx)
	if err != nil {
		return "", err
	}
	for _, asset := range assets {
		if asset.Name == assetName {
			return asset.UID, nil
		}
	}
	return "", &apierror.NotFoundError{
		APIError:     apierror.APIError{Message: fmt.Sprintf("asset name %q not found", assetName)},
		ResourceType: "asset",
		ResourceID:   assetName,
	}
}

// GetAsset retrieves a single asset by UID.
func (c *Client) GetAsset(ctx context.Context, assetUID string) (*AssetDetail, error) {
	if assetUID == "" {
		return nil, apierror.NewValidationError("asset UID cannot be empty")
	}

	resp, err := c.transport.Do(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/assets/%s", url.PathEscape(assetUID)),
		Query:  jsonFormat(),
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &apierror.NotFoundError{
			APIError:     apierror.APIError{StatusCode: http.StatusNotFound, Message: "asset not found"},
			ResourceType: "asset",
			ResourceID:   assetUID,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}

	var detail AssetDetail
	if err := json.Unmarshal(resp.Body, &detail); err != nil {
		return nil, fmt.Errorf("unmarshaling asset: %w", err)
	}
	if err := json.Unmarshal(resp.Body, &detail.Raw); err != nil {
		return nil, fmt.Errorf("unmarshaling asset: %w", err)
	}
	return &detail, nil
}

// Submission is a single survey submission record.
type Submission map[string]any

// submissionPage is one page of the submission data endpoint.
type submissionPage struct {
	Count   int          `json:"count"`
	Next    string       `json:"next"`
	Results []Submission `json:"results"`
}

// Submissions returns an iterator over all submissions of an asset,
// following the paginated "next" links lazily.
func (c *Client) Submissions(ctx context.Context, assetUID string) iter.Seq2[Submission, error] {
	return func(yield func(Submission, error) bool) {
		next := fmt.Sprintf("/assets/%s/data/", url.PathEscape(assetUID))

		for next != "" {
			var page submissionPage
			resp, err := c.transport.DoJSON(ctx, &api.Request{
				Method: http.MethodGet,
				Path:   next,
				Query:  jsonFormat(),
			}, &page)
			if err != nil {
				yield(nil, err)
				return
			}
			if resp.StatusCode >= http.StatusBadRequest {
				yield(nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers))
				return
			}

			for _, sub := range page.Results {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				if !yield(sub, nil) {
					return
				}
			}

			next = page.Next
		}
	}
}

// AllSubmissions retrieves every submission of an asset across all pages.
func (c *Client) AllSubmissions(ctx context.Context, assetUID string) ([]Submission, error) {
	all := make([]Submission, 0)
	for sub, err := range c.Submissions(ctx, assetUID) {
		if err != nil {
			return nil, err
		}
		all = append(all, sub)
	}
	return all, nil
}

// MetadataEntry describes one survey question extracted from the asset
// structure.
type MetadataEntry struct {
	Type         string   `json:"type"`
	Group        string   `json:"group"`
	Name         string   `json:"name"`
	Label        []string `json:"label"`
	Hint         []string `json:"hint"`
	Required     any      `json:"required"`
	QuestionCode string   `json:"question_code"`
}

// AssetMetadata extracts question-level metadata from the asset's survey
// content: type, group, name, labels, hint and the full question xpath.
func (c *Client) AssetMetadata(ctx context.Context, assetUID string) ([]MetadataEntry, error) {
	detail, err := c.GetAsset(ctx, assetUID)
	if err != nil {
		return nil, err
	}

	entries := make([]MetadataEntry, 0, len(detail.Content.Survey))
	for _, item := range detail.Content.Survey {
		var required any
		if len(item.Required) > 0 {
			_ = json.Unmarshal(item.Required, &required)
		}
		entries = append(entries, MetadataEntry{
			Type:         item.Type,
			Group:        groupFromXPath(item.XPath),
			Name:         item.Name,
			Label:        item.Label,
			Hint:         item.Hint,
			Required:     required,
			QuestionCode: item.XPath,
		})
	}
	return entries, nil
}

// groupFromXPath resolves the question group from its xpath. Questions at
// the top level have no group. When the path runs through a repeat (any
// segment prefixed "RPT"), the group sits one level deeper.
func groupFromXPath(xpath string) string {
	if xpath == "" {
		return ""
	}
	parts := strings.Split(xpath, "/")
	if len(parts) <= 1 {
		return ""
	}

	hasRepeat := false
	for _, part := range parts {
		if strings.HasPrefix(part, "RPT") {
			hasRepeat = true
			break
		}
	}
	if hasRepeat {
		if len(parts) > 2 {
			return parts[1]
		}
		return ""
	}
	return parts[0]
}

// ChoiceItem is an answer option from the asset's choice lists.
type ChoiceItem struct {
	ListName string   `json:"list_name"`
	Name     string   `json:"name"`
	Label    []string `json:"label"`
}

// AssetChoiceItems extracts the choice items (answer options) from the
// asset structure, with labels in all configured languages.
func (c *Client) AssetChoiceItems(ctx context.Context, assetUID string) ([]ChoiceItem, error) {
	detail, err := c.GetAsset(ctx, assetUID)
	if err != nil {
		return nil, err
	}

	items := make([]ChoiceItem, 0, len(detail.Content.Choices))
	for _, item := range detail.Content.Choices {
		items = append(items, ChoiceItem{
			ListName: item.ListName,
			Name:     item.Name,
			Label:    item.Label,
		})
	}
	return items, nil
}
