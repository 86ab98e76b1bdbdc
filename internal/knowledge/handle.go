package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
)

// ErrNotLoaded is returned when a Handle is queried before its backing
// index has completed at least one successful load.
var ErrNotLoaded = errors.New("knowledge handle not loaded")

// Handle is an opaque queryable reference to one indexed source inside the
// store. It becomes queryable only after the Indexer marks it ready; an
// empty collection is a valid ready state that simply yields no results.
type Handle struct {
	name   string
	source string // source_type filter, empty = all sources
	store  *Store
	ready  atomic.Bool
}

// NewHandle creates a handle over one source type. The handle is not
// queryable until markReady is called by a successful Indexer build.
func NewHandle(name, sourceType string, store *Store) *Handle {
	return &Handle{name: name, source: sourceType, store: store}
}

// Name returns the handle's identifier, used in logs.
func (h *Handle) Name() string { return h.name }

// Ready reports whether the handle has completed a successful load.
func (h *Handle) Ready() bool { return h.ready.Load() }

func (h *Handle) markReady() { h.ready.Store(true) }

// Query returns up to topK documents relevant to text, best first.
func (h *Handle) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if !h.ready.Load() {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, h.name)
	}
	opts := []SearchOption{WithTopK(topK)}
	if h.source != "" {
		opts = append(opts, WithSource(h.source))
	}
	return h.store.Search(ctx, text, opts...)
}

// Retriever is the query surface the orchestrator consumes. Both Handle and
// Combined satisfy it.
type Retriever interface {
	Name() string
	Ready() bool
	Query(ctx context.Context, text string, topK int) ([]Result, error)
}

// Combined merges several handles into one logical retrieval surface.
//
// All constituents share one embedder, so cosine scores are comparable and
// results are merged by descending score, capped at topK. Ties keep
// constituent registration order, then per-constituent result order, so
// repeated queries return a stable ordering. If constituents ever stop
// sharing an embedder, switch mergeByScore for a round-robin quota of
// topK/len(handles) per source instead of comparing scores.
type Combined struct {
	name    string
	handles []Retriever
}

// NewCombined builds a combined retrieval surface over the given handles.
func NewCombined(name string, handles ...Retriever) *Combined {
	return &Combined{name: name, handles: handles}
}

// Name returns the combined surface's identifier.
func (c *Combined) Name() string { return c.name }

// Ready reports whether every constituent handle is ready.
func (c *Combined) Ready() bool {
	for _, h := range c.handles {
		if !h.Ready() {
			return false
		}
	}
	return len(c.handles) > 0
}

// Query merge-queries every constituent and re-ranks by score.
// A failing constituent contributes nothing; the query only fails when
// every constituent fails.
func (c *Combined) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	type ranked struct {
		Result
		constituent int
		position    int
	}

	var merged []ranked
	var failures []error
	for i, h := range c.handles {
		results, err := h.Query(ctx, text, topK)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", h.Name(), err))
			continue
		}
		for pos, r := range results {
			merged = append(merged, ranked{Result: r, constituent: i, position: pos})
		}
	}
	if len(failures) == len(c.handles) && len(c.handles) > 0 {
		return nil, fmt.Errorf("all constituent queries failed: %w", errors.Join(failures...))
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Similarity != merged[j].Similarity {
			return merged[i].Similarity > merged[j].Similarity
		}
		if merged[i].constituent != merged[j].constituent {
			return merged[i].constituent < merged[j].constituent
		}
		return merged[i].position < merged[j].position
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	out := make([]Result, len(merged))
	for i, r := range merged {
		out[i] = r.Result
	}
	return out, nil
}
