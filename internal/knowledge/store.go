// Package knowledge provides the vector-backed knowledge store and the
// retrieval surface over it.
//
// Store handles embedding generation and similarity search against
// PostgreSQL + pgvector. Handle is the opaque queryable reference handed to
// the orchestrator; Combined merges several handles into one logical
// retrieval surface.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"

	"github.com/celim/oraculo/internal/document"
)

// Querier defines the database operations Store needs. The interface lives
// with its consumer so tests can substitute an in-memory implementation;
// PG (pg.go) is the production one.
type Querier interface {
	// UpsertDocument inserts or replaces a document by ID.
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error

	// SearchDocuments performs a vector similarity search, most similar
	// first, ties broken by insertion order.
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error)

	// DeleteBySource removes every document of one source type.
	DeleteBySource(ctx context.Context, sourceType string) error

	// CountDocuments counts documents; empty sourceType counts all.
	CountDocuments(ctx context.Context, sourceType string) (int64, error)
}

// UpsertDocumentParams carries one document row for upsert.
type UpsertDocumentParams struct {
	ID         string
	Content    string
	Embedding  *pgvector.Vector
	Metadata   []byte
	SourceType string
}

// SearchDocumentsParams carries one similarity search request.
type SearchDocumentsParams struct {
	QueryEmbedding *pgvector.Vector
	SourceType     string // empty = all sources
	ResultLimit    int32
}

// SearchDocumentsRow is one similarity search result row.
type SearchDocumentsRow struct {
	ID         string
	Content    string
	Metadata   []byte
	SourceType string
	Similarity float32
}

// Store manages knowledge documents with vector search.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a new Store. A nil logger falls back to slog.Default().
func NewStore(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds a document's content and upserts it by ID. Re-adding the same
// ID replaces the stored vector and metadata; it never duplicates.
func (s *Store) Add(ctx context.Context, doc document.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document has empty id")
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	sourceType := doc.Metadata[document.MetaSourceType]

	if err := s.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:         doc.ID,
		Content:    doc.Content,
		Embedding:  embedding,
		Metadata:   metadataJSON,
		SourceType: sourceType,
	}); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document", "id", doc.ID, "source_type", sourceType,
		"content_length", len(doc.Content))
	return nil
}

// Search performs semantic search, most similar first.
//
//	results, err := store.Search(ctx, "espeto de picanha",
//	    knowledge.WithTopK(5),
//	    knowledge.WithSource(document.SourceTypeCatalog))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.queries.SearchDocuments(queryCtx, SearchDocumentsParams{
		QueryEmbedding: embedding,
		SourceType:     cfg.source,
		ResultLimit:    int32(cfg.topK), // #nosec G115 -- topK validated by config
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return s.rowsToResults(rows), nil
}

// Count returns the number of stored documents for a source type
// (empty = all).
func (s *Store) Count(ctx context.Context, sourceType string) (int64, error) {
	count, err := s.queries.CountDocuments(ctx, sourceType)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

// DeleteBySource removes all documents of one source type. Used by
// recreate-mode reloads.
func (s *Store) DeleteBySource(ctx context.Context, sourceType string) error {
	if sourceType == "" {
		return fmt.Errorf("sourceType must not be empty")
	}
	if err := s.queries.DeleteBySource(ctx, sourceType); err != nil {
		return fmt.Errorf("deleting documents for source %q: %w", sourceType, err)
	}
	s.logger.Debug("deleted documents by source", "source_type", sourceType)
	return nil
}

// embed runs one text through the embedder and validates the response.
func (s *Store) embed(ctx context.Context, text string) (*pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedder returned empty embedding")
	}
	v := pgvector.NewVector(resp.Embeddings[0].Embedding)
	return &v, nil
}

func (s *Store) rowsToResults(rows []SearchDocumentsRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			s.logger.Warn("failed to parse metadata", "document_id", row.ID, "error", err)
			metadata = make(map[string]string)
		}
		results = append(results, Result{
			Document: document.Document{
				ID:       row.ID,
				Content:  row.Content,
				Metadata: metadata,
			},
			Similarity: row.Similarity,
		})
	}
	return results
}
