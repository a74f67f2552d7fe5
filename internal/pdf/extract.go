// Package pdf extracts plain text from PDF files for ingestion.
package pdf

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText signals the document contained no extractable text (scanned
// images, empty pages). Ingestion must abort before touching the store.
var ErrNoText = errors.New("pdf: no extractable text")

// ExtractText reads every page of the PDF at path and returns the joined
// text. Pages that yield nothing are skipped; NUL bytes are stripped.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("pdf: open %s: %w", path, err)
	}
	defer f.Close()

	var parts []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		text = strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
		if text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoText, path)
	}
	return strings.Join(parts, "\n"), nil
}

// DocIDFromPath derives a default document id from a filename: extension
// stripped, lowercased, spaces replaced with underscores.
func DocIDFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(strings.ToLower(base), " ", "_")
}
