// Package extract turns uploaded document bytes into plain text pages.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts per-page plain text from PDF documents.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Pages returns the sanitized text of every page in order. Pages without
// text are returned as empty strings.
func (e *PDFExtractor) Pages(ctx context.Context, data []byte) (pages []string, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("extract pdf text: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf text from page %d: %w", i, err)
		}
		pages = append(pages, Sanitize(text))
	}
	return pages, nil
}

// Sanitize drops NUL and other non-printing control characters, keeping
// common whitespace.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			b.WriteRune(ch)
			continue
		}
		if ch < 0x20 || ch == 0x7f {
			continue
		}
		b.WriteRune(ch)
	}
	return strings.TrimSpace(b.String())
}
