package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/celim/oraculo/internal/document"
)

// Indexer builds queryable handles from normalized documents.
//
// Thread-safe: concurrent Build calls for the same source serialize on mu so
// a recreate cannot interleave with another build's upserts.
type Indexer struct {
	store  *Store
	logger *slog.Logger
	mu     sync.Mutex
}

// NewIndexer creates an Indexer over the given store.
func NewIndexer(store *Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, logger: logger}
}

// BuildResult summarizes one indexing cycle.
type BuildResult struct {
	Indexed int
	Failed  int
}

// Build indexes documents into the given handle's source collection and
// marks the handle ready.
//
// Zero documents is not an error: the handle becomes a valid, queryable,
// empty collection (logged as a warning). Individual document failures are
// logged and skipped; Build only fails when every document of a non-empty
// set fails, which indicates the store itself is unavailable. In that case
// the handle's ready state is left untouched, so a previously loaded handle
// stays authoritative.
//
// When recreate is true the source's prior document set is dropped first.
// The default (recreate=false) upserts in place: stale IDs are replaced and
// retrieval never observes a half-empty collection.
func (idx *Indexer) Build(ctx context.Context, handle *Handle, docs []document.Document, recreate bool) (*BuildResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if recreate && handle.source != "" {
		if err := idx.store.DeleteBySource(ctx, handle.source); err != nil {
			return nil, fmt.Errorf("recreating collection %q: %w", handle.source, err)
		}
	}

	if len(docs) == 0 {
		idx.logger.Warn("indexing zero documents, handle bound to empty collection",
			"handle", handle.name)
		handle.markReady()
		return &BuildResult{}, nil
	}

	result := &BuildResult{}
	for _, doc := range docs {
		if err := idx.store.Add(ctx, doc); err != nil {
			idx.logger.Error("failed to index document",
				"handle", handle.name, "doc_id", doc.ID, "error", err)
			result.Failed++
			continue
		}
		result.Indexed++
	}

	if result.Indexed == 0 {
		return result, fmt.Errorf("failed to index any of %d documents for %q", len(docs), handle.name)
	}

	handle.markReady()
	idx.logger.Info("indexed documents",
		"handle", handle.name,
		"indexed", result.Indexed,
		"failed", result.Failed)
	return result, nil
}
