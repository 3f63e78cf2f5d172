// Package csvkeys reads record keys from CSV input.
package csvkeys

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Read yields every non-blank field of r, trimmed, row by row.
// Rows may have any number of fields. Reading stops after the first parse error.
func Read(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		reader.ReuseRecord = true

		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("failed to read csv: %w", err))
				return
			}
			for _, field := range record {
				field = strings.TrimSpace(field)
				if field == "" {
					continue
				}
				if !yield(field, nil) {
					return
				}
			}
		}
	}
}
