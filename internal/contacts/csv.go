package contacts

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	"wabulk/internal/domain"
)

// LoadCSV reads a comma-separated file whose first row is the header.
func LoadCSV(path string, opts Options) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.IngestionError{Source: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()
	return ReadCSV(path, f, opts)
}

// ReadCSV is LoadCSV over an arbitrary reader (e.g. an HTTP upload).
func ReadCSV(source string, r io.Reader, opts Options) (*List, error) {
	opts = opts.withDefaults()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &domain.IngestionError{Source: source, Reason: "malformed csv", Err: err}
	}
	if len(records) == 0 {
		return nil, &domain.IngestionError{Source: source, Reason: "empty file", Err: errors.New("no header row")}
	}
	return fromRows(source, records[0], records[1:], 2, opts)
}
