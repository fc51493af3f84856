package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

const pageSize = 100

// Kind is the normalized type of a Notion object.
type Kind string

const (
	KindPage     Kind = "page"
	KindDatabase Kind = "database"
	KindBlock    Kind = "block"
)

// Resource is the normalized shape of pages, databases and child blocks returned by the API.
type Resource struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"type"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}

// Record is a database row with every property flattened to plain text.
type Record struct {
	ID    string
	Title string
	Props map[string]string
}

// Options configures the per-user API client
type Options struct {
	APIVersion string
	Timeout    time.Duration // applied to every API call
	MaxRetries int
	HTTPClient *http.Client
}

// Client is a thin typed wrapper around the Notion API for a single access token.
type Client struct {
	api     *notionapi.Client
	timeout time.Duration
}

// NewClient creates a Client authenticated with the given integration or OAuth token
func NewClient(token string, opts Options) *Client {
	clientOpts := []notionapi.ClientOption{}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, notionapi.WithHTTPClient(opts.HTTPClient))
	}
	if opts.APIVersion != "" {
		clientOpts = append(clientOpts, notionapi.WithVersion(opts.APIVersion))
	}
	if opts.MaxRetries > 0 {
		clientOpts = append(clientOpts, notionapi.WithRetry(opts.MaxRetries))
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		api:     notionapi.NewClient(notionapi.Token(token), clientOpts...),
		timeout: timeout,
	}
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// RetrievePage fetches a page, failing when the token cannot read it.
func (c *Client) RetrievePage(ctx context.Context, pageID string) (*Resource, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	page, err := c.api.Page.Get(callCtx, notionapi.PageID(pageID))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve page %s: %w", pageID, err)
	}
	res := pageResource(page)
	return &res, nil
}

// ListChildren returns every direct child block of a page.
func (c *Client) ListChildren(ctx context.Context, blockID string) ([]Resource, error) {
	var out []Resource
	var cursor notionapi.Cursor
	for {
		callCtx, cancel := c.callContext(ctx)
		resp, err := c.api.Block.GetChildren(callCtx, notionapi.BlockID(blockID), &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    pageSize,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to list children of %s: %w", blockID, err)
		}

		for _, block := range resp.Results {
			out = append(out, blockResource(block))
		}

		if !resp.HasMore || resp.NextCursor == "" {
			return out, nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

// CreateDatabase creates a full-page database under parentPageID and returns its id.
func (c *Client) CreateDatabase(ctx context.Context, parentPageID, title string, properties notionapi.PropertyConfigs) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	db, err := c.api.Database.Create(callCtx, &notionapi.DatabaseCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(parentPageID),
		},
		Title:      richText(title),
		Properties: properties,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create database %q: %w", title, err)
	}
	return db.ID.String(), nil
}

// QueryDatabase returns every row of a database matching filter (nil for all rows).
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter notionapi.Filter) ([]Record, error) {
	var out []Record
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    pageSize,
		}
		if filter != nil {
			req.Filter = filter
		}

		callCtx, cancel := c.callContext(ctx)
		resp, err := c.api.Database.Query(callCtx, notionapi.DatabaseID(databaseID), req)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to query database %s: %w", databaseID, err)
		}

		for i := range resp.Results {
			out = append(out, pageRecord(&resp.Results[i]))
		}

		if !resp.HasMore || resp.NextCursor == "" {
			return out, nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

// CreatePage adds a row to a database and returns the new page id.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	page, err := c.api.Page.Create(callCtx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	return page.ID.String(), nil
}

// SearchResources lists every page and database shared with the integration.
func (c *Client) SearchResources(ctx context.Context) ([]Resource, error) {
	var out []Resource
	for _, objectType := range []string{"page", "database"} {
		var cursor notionapi.Cursor
		for {
			callCtx, cancel := c.callContext(ctx)
			resp, err := c.api.Search.Do(callCtx, &notionapi.SearchRequest{
				Filter:      notionapi.SearchFilter{Property: "object", Value: objectType},
				StartCursor: cursor,
				PageSize:    pageSize,
			})
			cancel()
			if err != nil {
				return nil, fmt.Errorf("failed to search %ss: %w", objectType, err)
			}

			for _, obj := range resp.Results {
				switch v := obj.(type) {
				case *notionapi.Page:
					out = append(out, pageResource(v))
				case *notionapi.Database:
					out = append(out, databaseResource(v))
				}
			}

			if !resp.HasMore || resp.NextCursor == "" {
				break
			}
			cursor = notionapi.Cursor(resp.NextCursor)
		}
	}
	return out, nil
}

// IsNotFound reports whether err is a Notion "object_not_found" (or an equivalent 404).
func IsNotFound(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound || apiErr.Code == "object_not_found"
	}
	return false
}

// IsUnauthorized reports whether err means the token is invalid or lacks permission.
func IsUnauthorized(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: content}}}
}

func plainText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		if rt.PlainText != "" {
			b.WriteString(rt.PlainText)
		} else if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}
