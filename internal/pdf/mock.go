package pdf

import (
	"bytes"
	"fmt"
)

// MockMerger is a Merger for tests. A "document" is any byte slice; its page
// count is the number of 'P' bytes it contains, and merging concatenates the
// inputs with a separator so tests can assert on ordering.
type MockMerger struct {
	// FailOn, when non-nil, makes Merge fail if any input equals it.
	FailOn []byte

	// Merged records the input sets passed to Merge, in call order.
	Merged [][][]byte
}

// Compile-time check that MockMerger implements Merger.
var _ Merger = (*MockMerger)(nil)

// Merge concatenates the inputs separated by '|'.
func (m *MockMerger) Merge(inputs [][]byte) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no documents to merge")
	}
	for _, in := range inputs {
		if m.FailOn != nil && bytes.Equal(in, m.FailOn) {
			return nil, fmt.Errorf("document failed validation")
		}
	}
	m.Merged = append(m.Merged, inputs)
	return bytes.Join(inputs, []byte("|")), nil
}

// PageCount counts 'P' bytes.
func (m *MockMerger) PageCount(data []byte) (int, error) {
	n := bytes.Count(data, []byte("P"))
	if n == 0 {
		return 0, ErrEmptyDocument
	}
	return n, nil
}
