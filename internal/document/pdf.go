package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// pdfErrorMarker prefixes the content of a document whose PDF text could not
// be extracted. The document is still indexed so a bad file never aborts a
// batch; the marker keeps it identifiable.
const pdfErrorMarker = "[pdf extraction failed]"

// ExtractPDFText extracts the plain text of a PDF page by page and
// concatenates the results. Pages that fail to decode are skipped.
func ExtractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", filepath.Base(path), err)
	}
	defer func() {
		_ = f.Close()
	}()

	var builder strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One undecodable page must not lose the rest of the file.
			slog.Warn("skipping unreadable pdf page",
				"file", filepath.Base(path), "page", i, "error", err)
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return strings.TrimSpace(builder.String()), nil
}

// NormalizePDF converts a PDF file into a Document. Extraction failures
// degrade to a marked document plus an error log; they are never returned to
// the caller, so one corrupt file cannot abort an ingestion batch.
func NormalizePDF(path string, logger *slog.Logger) Document {
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	content, err := ExtractPDFText(absPath)
	if err != nil {
		logger.Error("pdf extraction failed", "file", absPath, "error", err)
		content = fmt.Sprintf("%s %s: %v", pdfErrorMarker, filepath.Base(absPath), err)
	}

	return Document{
		ID:      FileID(absPath),
		Content: content,
		Metadata: map[string]string{
			MetaSourceType: SourceTypePDF,
			"file_path":    absPath,
			"file_name":    filepath.Base(absPath),
		},
		CreatedAt: time.Now(),
	}
}

// FileID derives a stable document ID from a file path.
func FileID(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	hash := sha256.Sum256([]byte(absPath))
	return "pdf_" + hex.EncodeToString(hash[:16])
}
