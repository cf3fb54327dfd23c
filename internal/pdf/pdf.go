// Package pdf wraps paged-document merging behind a small interface so the
// billing pipeline can be exercised without real PDF fixtures.
package pdf

import "errors"

var (
	// ErrEmptyDocument is returned when an input parses to zero pages.
	ErrEmptyDocument = errors.New("document has no pages")
)

// Merger merges paged documents and inspects page counts.
type Merger interface {
	// Merge concatenates the inputs into one document, preserving both
	// the order of the inputs and the page order within each input.
	// Fails if any input cannot be parsed; never returns a partial
	// result.
	Merge(inputs [][]byte) ([]byte, error)

	// PageCount returns the number of pages in a document.
	PageCount(data []byte) (int, error)
}
