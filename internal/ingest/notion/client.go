// Package notion is a minimal Notion API client covering the two calls the
// ingestion pipeline needs: querying a database for its pages and reading a
// page's block tree.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	apiBase    = "https://api.notion.com"
	apiVersion = "2022-06-28"

	// Notion caps page_size at 100.
	maxPageSize = 100
)

// Client is a lightweight Notion API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Tests point it at a local server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Notion API client for the given integration token.
func New(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("notion token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		token:      token,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// QueryDatabase returns every page of a Notion database, following
// pagination until exhausted.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]Page, error) {
	if databaseID == "" {
		return nil, fmt.Errorf("database id is required")
	}

	var pages []Page
	cursor := ""
	for {
		req := queryDatabaseRequest{PageSize: maxPageSize, StartCursor: cursor}
		var resp queryDatabaseResponse
		url := fmt.Sprintf("%s/v1/databases/%s/query", c.baseURL, databaseID)
		if err := c.makeRequest(ctx, http.MethodPost, url, req, &resp); err != nil {
			return nil, fmt.Errorf("query database: %w", err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	c.logger.Info("notion database query completed",
		"database_id", databaseID, "page_count", len(pages))
	return pages, nil
}

// GetBlockChildren returns the child blocks of a block (a page ID works),
// recursing into blocks that have children. A nested fetch failure skips
// that subtree rather than failing the whole page.
func (c *Client) GetBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""
	for {
		url := fmt.Sprintf("%s/v1/blocks/%s/children?page_size=%d", c.baseURL, blockID, maxPageSize)
		if cursor != "" {
			url += "&start_cursor=" + cursor
		}
		var resp blockChildrenResponse
		if err := c.makeRequest(ctx, http.MethodGet, url, nil, &resp); err != nil {
			return nil, fmt.Errorf("get block children: %w", err)
		}
		blocks = append(blocks, resp.Results...)
		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	var all []Block
	for _, block := range blocks {
		all = append(all, block)
		if block.HasChildren {
			children, err := c.GetBlockChildren(ctx, block.ID)
			if err != nil {
				c.logger.Warn("failed to fetch nested blocks",
					"block_id", block.ID, "error", err)
				continue
			}
			all = append(all, children...)
		}
	}
	return all, nil
}

func (c *Client) makeRequest(ctx context.Context, method, url string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notion API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// ExtractText concatenates the plain text of every text-bearing block,
// preserving a markdown-ish structure for headings and lists.
func ExtractText(blocks []Block) string {
	var b strings.Builder
	for _, block := range blocks {
		var text string
		switch block.Type {
		case "paragraph":
			if block.Paragraph != nil {
				text = richTextPlain(block.Paragraph.RichText)
			}
		case "heading_1":
			if block.Heading1 != nil {
				text = "# " + richTextPlain(block.Heading1.RichText)
			}
		case "heading_2":
			if block.Heading2 != nil {
				text = "## " + richTextPlain(block.Heading2.RichText)
			}
		case "heading_3":
			if block.Heading3 != nil {
				text = "### " + richTextPlain(block.Heading3.RichText)
			}
		case "bulleted_list_item":
			if block.BulletedListItem != nil {
				text = "- " + richTextPlain(block.BulletedListItem.RichText)
			}
		case "numbered_list_item":
			if block.NumberedListItem != nil {
				text = "- " + richTextPlain(block.NumberedListItem.RichText)
			}
		case "quote":
			if block.Quote != nil {
				text = "> " + richTextPlain(block.Quote.RichText)
			}
		case "callout":
			if block.Callout != nil {
				text = richTextPlain(block.Callout.RichText)
			}
		case "to_do":
			if block.ToDo != nil {
				checkbox := "[ ]"
				if block.ToDo.Checked {
					checkbox = "[x]"
				}
				text = checkbox + " " + richTextPlain(block.ToDo.RichText)
			}
		default:
			continue
		}
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func richTextPlain(fragments []RichText) string {
	var parts []string
	for _, rt := range fragments {
		parts = append(parts, rt.PlainText)
	}
	return strings.Join(parts, "")
}
