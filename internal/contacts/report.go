package contacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"wabulk/internal/domain"
)

// reportSheet is the sheet name used for .xlsx reports.
const reportSheet = "Results"

// WriteReport writes one row per outcome. The name and phone columns use the
// same headers as the input list, so the file can be loaded again (e.g.
// after filtering to failed rows) as the contacts of a new run.
func WriteReport(path string, opts Options, outcomes []domain.DeliveryOutcome) error {
	opts = opts.withDefaults()
	header := []string{opts.NameColumn, opts.PhoneColumn, "Address", "Status", "Detail", "Source Row"}
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			o.Recipient.Name,
			o.Recipient.Address,
			string(o.Address),
			string(o.Status),
			o.Detail,
			strconv.Itoa(o.Recipient.Row),
		})
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return writeCSVReport(path, header, rows)
	case ".xlsx":
		return writeXLSXReport(path, header, rows)
	default:
		return fmt.Errorf("unsupported report format %q (use .csv or .xlsx)", ext)
	}
}

func writeCSVReport(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write(header)
	w.WriteAll(rows) // flushes
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeXLSXReport(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return err
	}
	all := append([][]string{header}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow(reportSheet, cell, &vals); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
