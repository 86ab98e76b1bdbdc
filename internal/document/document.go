// Package document defines the canonical normalized unit of retrievable
// content and the normalization helpers that produce it.
//
// Every ingestion source (product catalog rows, Notion pages, PDF files)
// converges on Document before anything touches the vector store. Metadata is
// always a flat string map; nested source metadata is flattened by Flatten.
package document

import "time"

// Document is the canonical normalized unit of retrievable content.
// ID is stable and unique within its source; Content is the sole text fed to
// the embedder. A Document is immutable once indexed: reloading a source
// replaces its document set, it never merges.
type Document struct {
	ID        string            // Source-scoped unique identifier, never empty after normalization
	Content   string            // Document text content
	Metadata  map[string]string // Flat metadata (see Flatten)
	CreatedAt time.Time         // Creation timestamp
}

// Source type metadata values. Each ingestor stamps its documents so
// retrieval and reload can be scoped per source.
const (
	SourceTypeCatalog = "catalog"
	SourceTypeNotion  = "notion"
	SourceTypePDF     = "pdf"
)

// MetaSourceType is the metadata key carrying the source type constant.
const MetaSourceType = "source_type"
