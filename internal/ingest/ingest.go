// Package ingest loads heterogeneous sources (product catalog rows, Notion
// pages, PDF files) and normalizes them into documents for indexing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/celim/oraculo/internal/document"
	"github.com/celim/oraculo/internal/knowledge"
)

// Ingestor loads one source into normalized documents. Implementations are
// responsible for degrading malformed records into placeholder documents or
// skipping them; Load fails only when the source itself is unreachable.
type Ingestor interface {
	// Name identifies the source in logs and results.
	Name() string

	// Load fetches and normalizes every record of the source.
	Load(ctx context.Context) ([]document.Document, error)

	// Close releases any resources held by the ingestor.
	Close() error
}

// Source pairs an ingestor with the knowledge handle its documents feed.
type Source struct {
	Ingestor Ingestor
	Handle   *knowledge.Handle

	// Recreate drops the handle's prior documents before indexing instead
	// of upserting in place.
	Recreate bool
}

// SourceResult summarizes one source's ingestion cycle.
type SourceResult struct {
	Source   string
	Loaded   int
	Indexed  int
	Failed   int
	Duration time.Duration
	Err      error
}

// Pipeline runs load-normalize-index cycles across registered sources.
type Pipeline struct {
	indexer *knowledge.Indexer
	sources []Source
	logger  *slog.Logger
}

// NewPipeline creates a pipeline over the given sources.
func NewPipeline(indexer *knowledge.Indexer, sources []Source, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{indexer: indexer, sources: sources, logger: logger}
}

// Run ingests every source. Sources are isolated: one source failing to
// load or index leaves the others untouched and their handles queryable.
// The returned error joins per-source failures; results are always complete.
func (p *Pipeline) Run(ctx context.Context) ([]SourceResult, error) {
	return p.run(ctx, false)
}

// RunRecreate ingests every source with recreate forced on, dropping each
// source's prior document set before indexing.
func (p *Pipeline) RunRecreate(ctx context.Context) ([]SourceResult, error) {
	return p.run(ctx, true)
}

func (p *Pipeline) run(ctx context.Context, forceRecreate bool) ([]SourceResult, error) {
	results := make([]SourceResult, 0, len(p.sources))
	var failures []error

	for _, src := range p.sources {
		if forceRecreate {
			src.Recreate = true
		}
		result := p.runSource(ctx, src)
		results = append(results, result)
		if result.Err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", result.Source, result.Err))
		}
	}
	return results, errors.Join(failures...)
}

func (p *Pipeline) runSource(ctx context.Context, src Source) SourceResult {
	start := time.Now()
	result := SourceResult{Source: src.Ingestor.Name()}

	p.logger.Info("ingesting source", "source", result.Source, "recreate", src.Recreate)

	docs, err := src.Ingestor.Load(ctx)
	if err != nil {
		result.Err = fmt.Errorf("load: %w", err)
		result.Duration = time.Since(start)
		p.logger.Error("source load failed", "source", result.Source, "error", err)
		return result
	}
	result.Loaded = len(docs)

	build, err := p.indexer.Build(ctx, src.Handle, docs, src.Recreate)
	if build != nil {
		result.Indexed = build.Indexed
		result.Failed = build.Failed
	}
	if err != nil {
		result.Err = fmt.Errorf("index: %w", err)
	}
	result.Duration = time.Since(start)

	p.logger.Info("source ingested",
		"source", result.Source,
		"loaded", result.Loaded,
		"indexed", result.Indexed,
		"failed", result.Failed,
		"duration", result.Duration.String())
	return result
}

// Close closes every registered ingestor, joining any errors.
func (p *Pipeline) Close() error {
	var errs []error
	for _, src := range p.sources {
		if err := src.Ingestor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", src.Ingestor.Name(), err))
		}
	}
	return errors.Join(errs...)
}
