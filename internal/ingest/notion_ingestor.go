package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/celim/oraculo/internal/document"
	"github.com/celim/oraculo/internal/ingest/notion"
)

// NotionPageSource is the client surface the Notion ingestor needs.
type NotionPageSource interface {
	QueryDatabase(ctx context.Context, databaseID string) ([]notion.Page, error)
	GetBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error)
}

// NotionIngestor loads the pages of one Notion database into documents.
// Page properties are simplified and flattened into metadata; block text
// becomes the document content.
type NotionIngestor struct {
	client     NotionPageSource
	databaseID string
	logger     *slog.Logger
}

// NewNotionIngestor creates a Notion ingestor over one database.
func NewNotionIngestor(client NotionPageSource, databaseID string, logger *slog.Logger) *NotionIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotionIngestor{client: client, databaseID: databaseID, logger: logger}
}

// Name implements Ingestor.
func (n *NotionIngestor) Name() string { return document.SourceTypeNotion }

// Load fetches every page of the database. A page whose blocks cannot be
// fetched, or whose content is empty, is skipped with a warning; only a
// failed database query aborts the load.
func (n *NotionIngestor) Load(ctx context.Context) ([]document.Document, error) {
	pages, err := n.client.QueryDatabase(ctx, n.databaseID)
	if err != nil {
		return nil, fmt.Errorf("querying notion database: %w", err)
	}

	docs := make([]document.Document, 0, len(pages))
	for _, page := range pages {
		doc, ok := n.pageDocument(ctx, page)
		if !ok {
			continue
		}
		docs = append(docs, doc)
	}
	n.logger.Info("loaded notion pages", "pages", len(pages), "documents", len(docs))
	return docs, nil
}

// Close implements Ingestor.
func (n *NotionIngestor) Close() error { return nil }

func (n *NotionIngestor) pageDocument(ctx context.Context, page notion.Page) (document.Document, bool) {
	title := notion.PageTitle(page.Properties)

	blocks, err := n.client.GetBlockChildren(ctx, page.ID)
	if err != nil {
		n.logger.Warn("failed to fetch page content, skipping",
			"page_id", page.ID, "page_title", title, "error", err)
		return document.Document{}, false
	}

	content := notion.ExtractText(blocks)
	if title != "" {
		content = title + "\n\n" + content
	}
	if strings.TrimSpace(content) == "" {
		n.logger.Warn("skipping empty page", "page_id", page.ID, "page_title", title)
		return document.Document{}, false
	}

	metadata := document.Flatten(notion.SimplifyProperties(page.Properties))
	metadata[document.MetaSourceType] = document.SourceTypeNotion
	metadata["page_id"] = page.ID
	metadata["page_title"] = title
	if page.URL != "" {
		metadata["page_url"] = page.URL
	}
	if !page.LastEditedTime.IsZero() {
		metadata["last_edited_time"] = page.LastEditedTime.Format(time.RFC3339)
	}

	return document.Document{
		ID:        "notion_" + page.ID,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}, true
}
