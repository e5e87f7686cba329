package export

import (
	"fmt"

	"github.com/jszwec/csvutil"
)

// CSVCodec marshals typed row slices to CSV and back. Column names and order
// come from the `csv` struct tags, so a snapshot written to disk restores
// into the same rows after a restart.
type CSVCodec struct{}

// NewCSVCodec builds a CSV codec.
func NewCSVCodec() *CSVCodec {
	return &CSVCodec{}
}

// Marshal renders the row slice as CSV bytes including the header line.
func (c *CSVCodec) Marshal(rows interface{}) ([]byte, error) {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return data, nil
}

// Unmarshal parses CSV bytes into the provided row slice pointer.
func (c *CSVCodec) Unmarshal(data []byte, rows interface{}) error {
	if err := csvutil.Unmarshal(data, rows); err != nil {
		return fmt.Errorf("unmarshal csv: %w", err)
	}
	return nil
}
