package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celim/oraculo/internal/document"
	"github.com/celim/oraculo/internal/log"
)

type fakeCatalogQuerier struct {
	rows []ProductRow
	err  error
}

func (f *fakeCatalogQuerier) QueryProducts(context.Context) ([]ProductRow, error) {
	return f.rows, f.err
}

func TestCatalogLoadNormalizesRows(t *testing.T) {
	t.Parallel()

	ingestor := NewCatalogIngestor(&fakeCatalogQuerier{rows: []ProductRow{
		{ID: 1, Name: "Espeto de Picanha", Description: "carne nobre", Price: 12.5, Category: "carnes", Available: true},
		{ID: 2, Name: "Espeto de Queijo", Price: 8, Available: false},
	}}, log.NewNop())

	docs, err := ingestor.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first := docs[0]
	assert.Equal(t, "catalog_1", first.ID)
	assert.Contains(t, first.Content, "Espeto de Picanha: carne nobre")
	assert.Contains(t, first.Content, "Preço: R$ 12,50")
	assert.Equal(t, document.SourceTypeCatalog, first.Metadata[document.MetaSourceType])
	assert.Equal(t, "1", first.Metadata["product_id"])
	assert.Equal(t, "carnes", first.Metadata["category"])

	second := docs[1]
	assert.Contains(t, second.Content, "Preço: R$ 8,00")
	assert.Contains(t, second.Content, "indisponível")
}

func TestCatalogLoadSkipsNamelessRows(t *testing.T) {
	t.Parallel()

	ingestor := NewCatalogIngestor(&fakeCatalogQuerier{rows: []ProductRow{
		{ID: 1, Name: "   "},
		{ID: 2, Name: "Espeto de Frango", Price: 9.9},
	}}, log.NewNop())

	docs, err := ingestor.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "catalog_2", docs[0].ID)
}

func TestCatalogLoadPropagatesQueryFailure(t *testing.T) {
	t.Parallel()

	ingestor := NewCatalogIngestor(&fakeCatalogQuerier{err: assert.AnError}, log.NewNop())
	_, err := ingestor.Load(context.Background())
	require.Error(t, err)
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "R$ 12,50", FormatPrice(12.5))
	assert.Equal(t, "R$ 8,00", FormatPrice(8))
	assert.Equal(t, "R$ 0,99", FormatPrice(0.99))
	assert.Equal(t, "R$ 1234,57", FormatPrice(1234.567))
}

func TestPDFLoadMissingDirectory(t *testing.T) {
	t.Parallel()

	ingestor := NewPDFIngestor("/nonexistent/pdf/dir", log.NewNop())
	docs, err := ingestor.Load(context.Background())
	require.NoError(t, err, "a missing directory degrades to an empty source")
	assert.Empty(t, docs)
}
