package pdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// CpuMerger implements Merger using pdfcpu.
type CpuMerger struct {
	conf *model.Configuration
}

// Compile-time check that CpuMerger implements Merger.
var _ Merger = (*CpuMerger)(nil)

// NewCpuMerger returns a pdfcpu-backed merger with relaxed validation, which
// tolerates the slightly out-of-spec PDFs that scanners and phone cameras
// produce.
func NewCpuMerger() *CpuMerger {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &CpuMerger{conf: conf}
}

// Merge concatenates the inputs into one document. Every input is validated
// first; a single unparseable input fails the whole merge so no partial
// document can escape.
func (m *CpuMerger) Merge(inputs [][]byte) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no documents to merge")
	}

	for i, in := range inputs {
		if err := api.Validate(bytes.NewReader(in), m.conf); err != nil {
			return nil, fmt.Errorf("document %d failed validation: %w", i+1, err)
		}
	}

	if len(inputs) == 1 {
		out := make([]byte, len(inputs[0]))
		copy(out, inputs[0])
		return out, nil
	}

	readers := make([]io.ReadSeeker, len(inputs))
	for i, in := range inputs {
		readers[i] = bytes.NewReader(in)
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, m.conf); err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}

	return buf.Bytes(), nil
}

// PageCount returns the number of pages in a document.
func (m *CpuMerger) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), m.conf)
	if err != nil {
		return 0, fmt.Errorf("page count failed: %w", err)
	}
	if n == 0 {
		return 0, ErrEmptyDocument
	}
	return n, nil
}
