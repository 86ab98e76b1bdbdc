package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG implements Querier against PostgreSQL + pgvector.
//
// The documents table keeps a monotonically increasing seq column assigned
// on first insert and preserved across upserts; similarity ties are broken
// by seq so result ordering is stable across identical queries.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a Querier backed by the given connection pool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

const upsertDocumentSQL = `
INSERT INTO documents (id, content, embedding, metadata, source_type)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    content     = EXCLUDED.content,
    embedding   = EXCLUDED.embedding,
    metadata    = EXCLUDED.metadata,
    source_type = EXCLUDED.source_type,
    updated_at  = now()`

// UpsertDocument inserts or replaces one document row by ID.
func (q *PG) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.pool.Exec(ctx, upsertDocumentSQL,
		arg.ID, arg.Content, arg.Embedding, arg.Metadata, arg.SourceType)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

const searchDocumentsSQL = `
SELECT id, content, metadata, source_type,
       1 - (embedding <=> $1) AS similarity
FROM documents
WHERE ($2 = '' OR source_type = $2)
ORDER BY embedding <=> $1, seq
LIMIT $3`

// SearchDocuments runs a cosine similarity search, most similar first.
func (q *PG) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	rows, err := q.pool.Query(ctx, searchDocumentsSQL,
		arg.QueryEmbedding, arg.SourceType, arg.ResultLimit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var results []SearchDocumentsRow
	for rows.Next() {
		var r SearchDocumentsRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.SourceType, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}
	return results, nil
}

// DeleteBySource removes every document of one source type.
func (q *PG) DeleteBySource(ctx context.Context, sourceType string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM documents WHERE source_type = $1`, sourceType)
	if err != nil {
		return fmt.Errorf("delete by source: %w", err)
	}
	return nil
}

// CountDocuments counts stored documents; empty sourceType counts all.
func (q *PG) CountDocuments(ctx context.Context, sourceType string) (int64, error) {
	var count int64
	var row pgx.Row
	if sourceType == "" {
		row = q.pool.QueryRow(ctx, `SELECT count(*) FROM documents`)
	} else {
		row = q.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE source_type = $1`, sourceType)
	}
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}
