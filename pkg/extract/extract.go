// Package extract defines how the orchestrator obtains the text of a unit of
// work and provides an in-memory page source plus a Redis-cached decorator.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrUnitOutOfRange is wrapped when a unit id does not exist in the document.
var ErrUnitOutOfRange = errors.New("unit out of range")

// Extractor returns the text of one unit. Unit ids are 1-based.
type Extractor interface {
	Extract(ctx context.Context, unitID int) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, unitID int) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, unitID int) (string, error) {
	return f(ctx, unitID)
}

// Error describes a failed extraction.
type Error struct {
	UnitID int
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("extract unit %d: %v", e.UnitID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Pages is an in-memory document.
type Pages struct {
	pages []string
}

// NewPages creates a document from page texts. Page 1 is pages[0].
func NewPages(pages []string) *Pages {
	return &Pages{pages: pages}
}

// SplitPages splits text on form feeds, the page separator emitted by
// pdftotext and similar tools. A trailing empty page is dropped.
func SplitPages(text string) *Pages {
	pages := strings.Split(text, "\f")
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return NewPages(pages)
}

// Count returns the number of pages.
func (p *Pages) Count() int {
	return len(p.pages)
}

// Extract implements Extractor.
func (p *Pages) Extract(ctx context.Context, unitID int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{UnitID: unitID, Err: err}
	}
	if unitID < 1 || unitID > len(p.pages) {
		return "", &Error{
			UnitID: unitID,
			Err:    fmt.Errorf("%w: document has %d pages", ErrUnitOutOfRange, len(p.pages)),
		}
	}
	return p.pages[unitID-1], nil
}

// DocumentID derives a stable identifier from document content.
func DocumentID(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:8])
}

// Concat extracts every unit in order and joins them with page headers so
// that generated items can be attributed to their page.
func Concat(ctx context.Context, ex Extractor, unitIDs []int) (string, error) {
	var b strings.Builder
	for i, id := range unitIDs {
		text, err := ex.Extract(ctx, id)
		if err != nil {
			var ee *Error
			if errors.As(err, &ee) {
				return "", err
			}
			return "", &Error{UnitID: id, Err: err}
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n", id)
		b.WriteString(strings.TrimSpace(text))
	}
	return b.String(), nil
}
