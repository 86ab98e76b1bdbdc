package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/celim/oraculo/internal/document"
)

// PDFIngestor walks a directory and normalizes every PDF file found.
// Files that fail extraction still produce a marked document, so a corrupt
// file never removes its neighbors from the index.
type PDFIngestor struct {
	dir    string
	logger *slog.Logger
}

// NewPDFIngestor creates a PDF ingestor over one directory.
func NewPDFIngestor(dir string, logger *slog.Logger) *PDFIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFIngestor{dir: dir, logger: logger}
}

// Name implements Ingestor.
func (p *PDFIngestor) Name() string { return document.SourceTypePDF }

// Load walks the directory recursively. A missing directory yields zero
// documents rather than an error, so the source degrades to an empty
// collection when no PDFs have been provisioned.
func (p *PDFIngestor) Load(ctx context.Context) ([]document.Document, error) {
	if _, err := os.Stat(p.dir); os.IsNotExist(err) {
		p.logger.Warn("pdf directory does not exist", "dir", p.dir)
		return nil, nil
	}

	var docs []document.Document
	err := filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		docs = append(docs, document.NormalizePDF(path, p.logger))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking pdf directory %s: %w", p.dir, err)
	}

	p.logger.Info("loaded pdf files", "dir", p.dir, "documents", len(docs))
	return docs, nil
}

// Close implements Ingestor.
func (p *PDFIngestor) Close() error { return nil }
