package contacts

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"wabulk/internal/domain"
)

// LoadXLSX reads the configured sheet (or the first one) of a workbook.
func LoadXLSX(path string, opts Options) (*List, error) {
	opts = opts.withDefaults()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &domain.IngestionError{Source: path, Reason: "cannot open workbook", Err: err}
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &domain.IngestionError{Source: path, Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &domain.IngestionError{Source: path, Reason: fmt.Sprintf("cannot read sheet %q", sheet), Err: err}
	}
	if len(rows) == 0 {
		return nil, &domain.IngestionError{Source: path, Reason: fmt.Sprintf("sheet %q is empty", sheet)}
	}
	return fromRows(path, rows[0], rows[1:], 2, opts)
}
