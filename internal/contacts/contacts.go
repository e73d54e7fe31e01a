// Package contacts reads recipient lists from tabular sources. Every loader
// checks for the name and phone columns up front and skips rows missing
// either value, reporting them as rejected.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"wabulk/internal/domain"
)

const (
	DefaultNameColumn  = "Name"
	DefaultPhoneColumn = "Phone Number"
	DefaultTable       = "contacts"
)

// Options control how columns are located.
type Options struct {
	NameColumn  string
	PhoneColumn string
	Sheet       string // xlsx only; first sheet when empty
	Table       string // sqlite only
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.NameColumn == "" {
		o.NameColumn = DefaultNameColumn
	}
	if o.PhoneColumn == "" {
		o.PhoneColumn = DefaultPhoneColumn
	}
	if o.Table == "" {
		o.Table = DefaultTable
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Rejected is a source row that could not become a recipient.
type Rejected struct {
	Row    int
	Reason string
}

// List is the result of ingesting a source.
type List struct {
	Source     string
	Recipients []domain.RecipientRecord
	Rejected   []Rejected
}

// Load picks a reader by file extension.
func Load(ctx context.Context, path string, opts Options) (*List, error) {
	opts = opts.withDefaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path, opts)
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, opts)
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLite(ctx, path, opts)
	case ".xls":
		return nil, &domain.IngestionError{Source: path, Reason: "legacy .xls workbooks are not supported, save as .xlsx or .csv"}
	default:
		return nil, &domain.IngestionError{Source: path, Reason: fmt.Sprintf("unsupported file type %q", filepath.Ext(path))}
	}
}

// columnIndexes locates the name and phone columns in a header row.
func columnIndexes(source string, header []string, opts Options) (nameIdx, phoneIdx int, err error) {
	nameIdx, phoneIdx = -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case opts.NameColumn:
			if nameIdx < 0 {
				nameIdx = i
			}
		case opts.PhoneColumn:
			if phoneIdx < 0 {
				phoneIdx = i
			}
		}
	}
	var missing []string
	if nameIdx < 0 {
		missing = append(missing, opts.NameColumn)
	}
	if phoneIdx < 0 {
		missing = append(missing, opts.PhoneColumn)
	}
	if len(missing) > 0 {
		return -1, -1, &domain.IngestionError{
			Source: source,
			Reason: fmt.Sprintf("missing required column(s): %s", strings.Join(missing, ", ")),
		}
	}
	return nameIdx, phoneIdx, nil
}

// fromRows turns a header row plus data rows into a List. rowOffset is the
// 1-based source row number of rows[0].
func fromRows(source string, header []string, rows [][]string, rowOffset int, opts Options) (*List, error) {
	nameIdx, phoneIdx, err := columnIndexes(source, header, opts)
	if err != nil {
		return nil, err
	}

	list := &List{Source: source}
	for i, row := range rows {
		rowNum := rowOffset + i
		if isBlank(row) {
			continue
		}
		rec := domain.RecipientRecord{
			Name:    strings.TrimSpace(cell(row, nameIdx)),
			Address: cleanPhone(cell(row, phoneIdx)),
			Row:     rowNum,
		}
		if !rec.Valid() {
			reason := "missing name"
			if rec.Name != "" {
				reason = "missing phone number"
			}
			list.Rejected = append(list.Rejected, Rejected{Row: rowNum, Reason: reason})
			opts.Logger.Warn("contact row rejected", "source", source, "row", rowNum, "reason", reason)
			continue
		}
		list.Recipients = append(list.Recipients, rec)
	}

	opts.Logger.Info("contacts loaded", "source", source, "recipients", len(list.Recipients), "rejected", len(list.Rejected))
	return list, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Spreadsheets store long numbers as floats, so "9876543210" can come back
// as "9876543210.0".
var floatPhone = regexp.MustCompile(`^(\d+)\.0+$`)

func cleanPhone(s string) string {
	s = strings.TrimSpace(s)
	if m := floatPhone.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
