package gdelt

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// ArticleText is the extracted body of a news article.
type ArticleText struct {
	Text string `json:"text"`
}

// GetArticle downloads the article page at articleURL (typically the URL
// field from a ListArticles result) and extracts its readable text by
// concatenating paragraph content.
func (c *Client) GetArticle(ctx context.Context, articleURL string) (*ArticleText, error) {
	if articleURL == "" {
		return nil, apierror.NewValidationError("article URL cannot be empty")
	}

	resp, err := c.transport.Do(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   articleURL,
		Headers: http.Header{
			"Accept": []string{"text/html"},
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, err
	}

	var paragraphs []string
	doc.Find("article p, p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	// Deduplicate while preserving order; "article p" and "p" can both
	// match the same node.
	seen := make(map[string]struct{}, len(paragraphs))
	var unique []string
	for _, p := range paragraphs {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}

	return &ArticleText{Text: strings.Join(unique, "\n\n")}, nil
}
