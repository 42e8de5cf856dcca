package table

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/fetcher"
)

// Options controls how a table file is read.
type Options struct {
	Delimiter    rune            // 0 = sniff (.csv/.txt) or tab (.tsv)
	Encoding     string          // WHATWG label; "" = UTF-8
	Sheet        string          // xlsx sheet or sqlite table name
	SkipRows     int             // rows skipped before the header
	Dtypes       map[string]Kind // pinned column kinds
	DecimalComma bool            // accept "1,5" as 1.5
}

// ParseDelimiter reads a delimiter flag: a single character, or "tab",
// `\t` or "" (sniff).
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, eris.Errorf("table: delimiter must be a single character, got %q", s)
	}
	return r[0], nil
}

// Load reads the table at path. The format is chosen by file suffix.
func Load(ctx context.Context, path string, opts Options) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "table: load")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound(err, "table: %s does not exist", path)
		}
		return nil, eris.Wrapf(err, "table: stat %s", path)
	}
	if info.IsDir() {
		return nil, apperr.Parse(nil, "table: %s is a directory", path)
	}

	log := zap.L().With(zap.String("component", "table"), zap.String("path", path))

	var t *Table
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt", ".tsv":
		if ext == ".tsv" && opts.Delimiter == 0 {
			opts.Delimiter = '\t'
		}
		t, err = loadDelimited(path, opts)
	case ".xlsx":
		t, err = loadXLSX(path, opts)
	case ".parquet":
		t, err = loadParquet(ctx, path, opts)
	case ".sqlite", ".db":
		t, err = loadSQLite(ctx, path, opts)
	default:
		return nil, apperr.Parse(nil, "table: unsupported table format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("table loaded", zap.Int("rows", t.Len()), zap.Int("columns", len(t.Columns)))
	return t, nil
}

func loadDelimited(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "table: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{
		Delimiter: opts.Delimiter,
		Encoding:  opts.Encoding,
	})
	if err != nil {
		return nil, apperr.Parse(err, "table: parse %s", path)
	}
	if opts.SkipRows > 0 {
		all := append([][]string{header}, rows...)
		if opts.SkipRows >= len(all) {
			return nil, apperr.Parse(nil, "table: %s has no header after skipping %d rows", path, opts.SkipRows)
		}
		header, rows = all[opts.SkipRows], all[opts.SkipRows+1:]
	}
	return FromRecords(header, rows, opts)
}

func loadXLSX(path string, opts Options) (*Table, error) {
	header, rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{
		SheetName: opts.Sheet,
		SkipRows:  opts.SkipRows,
	})
	if err != nil {
		return nil, apperr.Parse(err, "table: parse %s", path)
	}
	return FromRecords(header, rows, opts)
}

// FromRecords builds a table from a header and string rows using the
// inference policy. Short rows are padded with missing cells; rows longer
// than the header are rejected.
func FromRecords(header []string, rows [][]string, opts Options) (*Table, error) {
	names := CleanHeader(header)
	for i, r := range rows {
		if len(r) > len(names) {
			return nil, apperr.Parse(nil, "table: row %d has %d fields, header has %d", i+2, len(r), len(names))
		}
	}

	cols := make([]*Column, len(names))
	cells := make([]string, len(rows))
	for j, name := range names {
		for i, r := range rows {
			if j < len(r) {
				cells[i] = r[j]
			} else {
				cells[i] = ""
			}
		}
		cols[j] = BuildColumn(name, cells, opts)
	}
	return New(cols...)
}

// BuildColumn types raw cells, honouring a pinned kind in opts.Dtypes.
func BuildColumn(name string, cells []string, opts Options) *Column {
	kind, pinned := opts.Dtypes[name]
	if !pinned {
		kind = InferKind(cells, opts.DecimalComma)
	}
	vals := make([]any, len(cells))
	for i, raw := range cells {
		vals[i], _ = ParseCell(raw, kind, opts.DecimalComma)
	}
	return &Column{Name: name, Kind: kind, Values: vals}
}

// CleanHeader names empty headers "Unnamed: <i>" and suffixes duplicates
// with ".1", ".2" and so on.
func CleanHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		taken[name] = true
		out[i] = name
	}
	for i, name := range out {
		n, dup := seen[name]
		if !dup {
			seen[name] = 0
			continue
		}
		for {
			n++
			candidate := name + "." + strconv.Itoa(n)
			if !taken[candidate] {
				out[i] = candidate
				taken[candidate] = true
				break
			}
		}
		seen[name] = n
	}
	return out
}
