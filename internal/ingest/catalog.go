package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/celim/oraculo/internal/document"
)

// CatalogRowQuerier is the database surface the catalog ingestor needs.
// *pgxpool.Pool satisfies it; tests use a fake.
type CatalogRowQuerier interface {
	QueryProducts(ctx context.Context) ([]ProductRow, error)
}

// ProductRow is one relational product record.
type ProductRow struct {
	ID          int64
	Name        string
	Description string
	Price       float64
	Category    string
	Available   bool
}

// CatalogIngestor loads product rows from the relational catalog and
// renders each into one retrievable document.
type CatalogIngestor struct {
	querier CatalogRowQuerier
	logger  *slog.Logger
}

// NewCatalogIngestor creates a catalog ingestor over the given querier.
func NewCatalogIngestor(querier CatalogRowQuerier, logger *slog.Logger) *CatalogIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogIngestor{querier: querier, logger: logger}
}

// Name implements Ingestor.
func (c *CatalogIngestor) Name() string { return document.SourceTypeCatalog }

// Load fetches every product row and normalizes it. Rows with a blank name
// are skipped with a warning; a row is never allowed to abort the batch.
func (c *CatalogIngestor) Load(ctx context.Context) ([]document.Document, error) {
	rows, err := c.querier.QueryProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}

	docs := make([]document.Document, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			c.logger.Warn("skipping product with empty name", "product_id", row.ID)
			continue
		}
		docs = append(docs, productDocument(row))
	}
	c.logger.Info("loaded catalog rows", "rows", len(rows), "documents", len(docs))
	return docs, nil
}

// Close implements Ingestor. The pool is owned by the app container.
func (c *CatalogIngestor) Close() error { return nil }

func productDocument(row ProductRow) document.Document {
	var b strings.Builder
	b.WriteString(row.Name)
	if desc := strings.TrimSpace(row.Description); desc != "" {
		b.WriteString(": ")
		b.WriteString(desc)
	}
	fmt.Fprintf(&b, " Preço: %s", FormatPrice(row.Price))
	if row.Category != "" {
		b.WriteString(" Categoria: ")
		b.WriteString(row.Category)
	}
	if !row.Available {
		b.WriteString(" (indisponível no momento)")
	}

	metadata := document.Flatten(map[string]any{
		"product_id": row.ID,
		"name":       row.Name,
		"price":      row.Price,
		"category":   row.Category,
		"available":  row.Available,
	})
	metadata[document.MetaSourceType] = document.SourceTypeCatalog

	return document.Document{
		ID:        "catalog_" + strconv.FormatInt(row.ID, 10),
		Content:   b.String(),
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
}

// FormatPrice renders a price in Brazilian convention: R$ 12,50.
func FormatPrice(price float64) string {
	return "R$ " + strings.Replace(fmt.Sprintf("%.2f", price), ".", ",", 1)
}

// PgxCatalogQuerier implements CatalogRowQuerier against the products table.
type PgxCatalogQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxCatalogQuerier wraps a connection pool.
func NewPgxCatalogQuerier(pool *pgxpool.Pool) *PgxCatalogQuerier {
	return &PgxCatalogQuerier{pool: pool}
}

const queryProductsSQL = `
SELECT id, name, COALESCE(description, ''), price, COALESCE(category, ''), available
FROM products
ORDER BY id`

// QueryProducts returns every product row ordered by id.
func (q *PgxCatalogQuerier) QueryProducts(ctx context.Context) ([]ProductRow, error) {
	rows, err := q.pool.Query(ctx, queryProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []ProductRow
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Available); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product rows: %w", err)
	}
	return products, nil
}
