package knowledge

import (
	"time"

	"github.com/celim/oraculo/internal/document"
)

// Result is a single search result with its similarity score.
type Result struct {
	Document   document.Document
	Similarity float32 // Cosine similarity (0-1)
}

// SearchOption configures search behavior using functional options.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	source  string
	timeout time.Duration
}

// DefaultSearchTimeout bounds a single vector search including the query
// embedding call.
const DefaultSearchTimeout = 10 * time.Second

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithSource restricts results to a single source type
// (document.SourceTypeCatalog, ...). Empty means all sources.
func WithSource(sourceType string) SearchOption {
	return func(c *searchConfig) {
		c.source = sourceType
	}
}

// WithTimeout overrides the per-search timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		c.timeout = d
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
