package table

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/spbu-research/spbu-maps/internal/apperr"
)

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "table: open sqlite %s", path)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func loadSQLite(ctx context.Context, path string, opts Options) (*Table, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	name := opts.Sheet
	if name == "" {
		tables, err := sqliteTables(ctx, db)
		if err != nil {
			return nil, apperr.Parse(err, "table: read sqlite catalog %s", path)
		}
		switch len(tables) {
		case 0:
			return nil, apperr.Schema(nil, "table: %s contains no tables", path)
		case 1:
			name = tables[0]
		default:
			return nil, apperr.Schema(nil, "table: %s contains %d tables (%s); pick one with the sheet option",
				path, len(tables), strings.Join(tables, ", "))
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(name))
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, apperr.Schema(err, "table: %s has no table %q", path, name)
		}
		return nil, apperr.Parse(err, "table: query %s", path)
	}
	defer rows.Close() //nolint:errcheck

	header, err := rows.Columns()
	if err != nil {
		return nil, apperr.Parse(err, "table: read columns of %q", name)
	}

	var records [][]string
	for rows.Next() {
		raw := make([]any, len(header))
		ptrs := make([]any, len(header))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperr.Parse(err, "table: scan row of %q", name)
		}
		rec := make([]string, len(raw))
		for i, v := range raw {
			rec[i] = FormatValue(v)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Parse(err, "table: iterate rows of %q", name)
	}
	return FromRecords(header, records, opts)
}

func sqliteTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// saveSQLite writes t as table name into a fresh database file and moves it
// over path.
func saveSQLite(ctx context.Context, t *Table, path, name string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "table: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "table: create temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	db, err := openSQLite(tmpPath)
	if err != nil {
		return err
	}
	if err = writeSQLite(ctx, db, t, name); err != nil {
		_ = db.Close()
		return err
	}
	if err = db.Close(); err != nil {
		return eris.Wrap(err, "table: close sqlite")
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(err, "table: rename to %s", path)
	}
	return nil
}

func writeSQLite(ctx context.Context, db *sql.DB, t *Table, name string) error {
	defs := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c.Name) + " " + sqliteType(c.Kind)
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "table: begin sqlite tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+quoteIdent(name)+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return eris.Wrapf(err, "table: create sqlite table %q", name)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quoteIdent(name)+" VALUES ("+strings.Join(marks, ", ")+")")
	if err != nil {
		return eris.Wrap(err, "table: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	args := make([]any, len(t.Columns))
	for r := range t.Len() {
		for i, c := range t.Columns {
			args[i] = sqliteArg(c.Values[r])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrapf(err, "table: insert row %d", r)
		}
	}
	return eris.Wrap(tx.Commit(), "table: commit sqlite tx")
}

func sqliteType(k Kind) string {
	switch k {
	case KindInt:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func sqliteArg(v any) any {
	if ts, ok := v.(time.Time); ok {
		return FormatValue(ts)
	}
	return v
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
