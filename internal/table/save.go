package table

import (
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

// SaveOptions controls Save.
type SaveOptions struct {
	Delimiter rune   // .csv only; 0 = ','
	Table     string // sqlite table name; "" = file stem
}

// Save writes t to path. The format is chosen by suffix: .csv, .tsv, .sqlite
// or .db. The file is replaced atomically.
func Save(ctx context.Context, t *Table, path string, opts SaveOptions) error {
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		delim := opts.Delimiter
		if delim == 0 {
			delim = ','
		}
		err = workspace.WriteFileAtomic(path, func(w io.Writer) error {
			return WriteCSV(w, t, delim)
		})
	case ".tsv":
		err = workspace.WriteFileAtomic(path, func(w io.Writer) error {
			return WriteCSV(w, t, '\t')
		})
	case ".sqlite", ".db":
		name := opts.Table
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		err = saveSQLite(ctx, t, path, name)
	default:
		return apperr.Parse(nil, "table: cannot save to format %q", ext)
	}
	if err != nil {
		return err
	}

	zap.L().Info("table saved",
		zap.String("component", "table"),
		zap.String("path", path),
		zap.Int("rows", t.Len()),
	)
	return nil
}

// WriteCSV writes the header and every row of t. Missing cells are empty.
func WriteCSV(w io.Writer, t *Table, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(t.Names()); err != nil {
		return eris.Wrap(err, "table: write header")
	}
	rec := make([]string, len(t.Columns))
	for r := range t.Len() {
		for i, c := range t.Columns {
			rec[i] = FormatValue(c.Values[r])
		}
		if len(rec) == 1 && rec[0] == "" {
			// A bare empty line would be skipped on read.
			cw.Flush()
			if err := cw.Error(); err != nil {
				return eris.Wrapf(err, "table: write row %d", r)
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return eris.Wrapf(err, "table: write row %d", r)
			}
			continue
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "table: write row %d", r)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "table: flush csv")
}
