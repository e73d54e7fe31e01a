package contacts

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"

	_ "modernc.org/sqlite"

	"wabulk/internal/domain"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ ]*$`)

// LoadSQLite reads recipients from a table in an existing SQLite database,
// in rowid order. Column and table names come from Options.
func LoadSQLite(ctx context.Context, path string, opts Options) (*List, error) {
	opts = opts.withDefaults()
	if _, err := os.Stat(path); err != nil {
		return nil, &domain.IngestionError{Source: path, Reason: "cannot open database", Err: err}
	}
	for _, ident := range []string{opts.Table, opts.NameColumn, opts.PhoneColumn} {
		if !identPattern.MatchString(ident) {
			return nil, &domain.IngestionError{Source: path, Reason: fmt.Sprintf("invalid identifier %q", ident)}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &domain.IngestionError{Source: path, Reason: "cannot open database", Err: err}
	}
	defer db.Close()

	header, err := tableColumns(ctx, db, opts.Table)
	if err != nil {
		return nil, &domain.IngestionError{Source: path, Reason: fmt.Sprintf("cannot inspect table %q", opts.Table), Err: err}
	}
	if len(header) == 0 {
		return nil, &domain.IngestionError{Source: path, Reason: fmt.Sprintf("table %q does not exist", opts.Table)}
	}

	if _, _, err := columnIndexes(path, header, opts); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT CAST(%q AS TEXT), CAST(%q AS TEXT) FROM %q ORDER BY rowid`,
		opts.NameColumn, opts.PhoneColumn, opts.Table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, &domain.IngestionError{Source: path, Reason: "query failed", Err: err}
	}
	defer rows.Close()

	var data [][]string
	for rows.Next() {
		var name, phone sql.NullString
		if err := rows.Scan(&name, &phone); err != nil {
			return nil, &domain.IngestionError{Source: path, Reason: "scan failed", Err: err}
		}
		data = append(data, []string{name.String, phone.String})
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.IngestionError{Source: path, Reason: "read failed", Err: err}
	}
	return fromRows(path, []string{opts.NameColumn, opts.PhoneColumn}, data, 1, opts)
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM pragma_table_info(%s)`, quoteLiteral(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func quoteLiteral(s string) string {
	return "'" + s + "'"
}
