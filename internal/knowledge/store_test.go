package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celim/oraculo/internal/document"
	"github.com/celim/oraculo/internal/log"
	"github.com/celim/oraculo/internal/testutil"
)

// fakeQuerier is an in-memory Querier with cosine search, mirroring the
// ordering contract of the production implementation (score desc, then
// insertion order).
type fakeQuerier struct {
	mu      sync.Mutex
	rows    map[string]UpsertDocumentParams
	seq     map[string]int
	nextSeq int
	failIDs map[string]error

	upsertErr error
	searchErr error
	deleteErr error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		rows:    make(map[string]UpsertDocumentParams),
		seq:     make(map[string]int),
		failIDs: make(map[string]error),
	}
}

func (f *fakeQuerier) UpsertDocument(_ context.Context, arg UpsertDocumentParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if err, ok := f.failIDs[arg.ID]; ok {
		return err
	}
	if _, exists := f.rows[arg.ID]; !exists {
		f.seq[arg.ID] = f.nextSeq
		f.nextSeq++
	}
	f.rows[arg.ID] = arg
	return nil
}

func (f *fakeQuerier) SearchDocuments(_ context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}

	query := arg.QueryEmbedding.Slice()
	var results []SearchDocumentsRow
	ids := make([]string, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return f.seq[ids[i]] < f.seq[ids[j]] })

	for _, id := range ids {
		row := f.rows[id]
		if arg.SourceType != "" && row.SourceType != arg.SourceType {
			continue
		}
		results = append(results, SearchDocumentsRow{
			ID:         row.ID,
			Content:    row.Content,
			Metadata:   row.Metadata,
			SourceType: row.SourceType,
			Similarity: cosine(query, row.Embedding.Slice()),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if int32(len(results)) > arg.ResultLimit {
		results = results[:arg.ResultLimit]
	}
	return results, nil
}

func (f *fakeQuerier) DeleteBySource(_ context.Context, sourceType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for id, row := range f.rows {
		if row.SourceType == sourceType {
			delete(f.rows, id)
			delete(f.seq, id)
		}
	}
	return nil
}

func (f *fakeQuerier) CountDocuments(_ context.Context, sourceType string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, row := range f.rows {
		if sourceType == "" || row.SourceType == sourceType {
			count++
		}
	}
	return count, nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func newTestStore(t *testing.T) (*Store, *fakeQuerier, *testutil.MockEmbedder) {
	t.Helper()
	querier := newFakeQuerier()
	embedder := testutil.NewMockEmbedder(8)
	store := NewStore(querier, embedder, log.NewNop())
	return store, querier, embedder
}

func testDoc(id, content, sourceType string) document.Document {
	return document.Document{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			document.MetaSourceType: sourceType,
		},
	}
}

func TestStoreAddRejectsEmptyID(t *testing.T) {
	t.Parallel()
	store, _, _ := newTestStore(t)

	err := store.Add(context.Background(), document.Document{Content: "no id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty id")
}

func TestStoreAddIsIdempotent(t *testing.T) {
	t.Parallel()
	store, querier, _ := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("catalog_1", "Espeto de picanha", document.SourceTypeCatalog)
	require.NoError(t, store.Add(ctx, doc))
	require.NoError(t, store.Add(ctx, doc))

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	results, err := store.Search(ctx, "Espeto de picanha", WithTopK(10))
	require.NoError(t, err)
	require.Len(t, results, 1, "re-adding the same id must not duplicate matches")
	assert.Equal(t, "catalog_1", results[0].Document.ID)

	// Re-adding preserves the original insertion order slot.
	assert.Equal(t, 0, querier.seq["catalog_1"])
}

func TestStoreSearchFiltersBySource(t *testing.T) {
	t.Parallel()
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, testDoc("c1", "espeto de frango", document.SourceTypeCatalog)))
	require.NoError(t, store.Add(ctx, testDoc("p1", "tabela de preços", document.SourceTypePDF)))

	results, err := store.Search(ctx, "espeto de frango",
		WithTopK(10), WithSource(document.SourceTypeCatalog))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Document.ID)
}

func TestStoreSearchPropagatesEmbedderFailure(t *testing.T) {
	t.Parallel()
	store, _, embedder := newTestStore(t)

	embedder.Fail(assert.AnError)
	_, err := store.Search(context.Background(), "qualquer coisa")
	require.Error(t, err)
}

func TestStoreDeleteBySourceRequiresSource(t *testing.T) {
	t.Parallel()
	store, _, _ := newTestStore(t)

	err := store.DeleteBySource(context.Background(), "")
	require.Error(t, err)
}
