package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // rows skipped before the header
}

// ReadXLSX reads one sheet of an XLSX file. The first row after SkipRows is
// returned as the header. Trailing blank rows are dropped.
func ReadXLSX(path string, opts XLSXOptions) ([]string, [][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, nil, err
	}

	var header []string
	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows || row == nil {
			continue
		}
		cells := rowToStrings(row)
		if header == nil {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}

	if header == nil {
		return nil, nil, eris.Errorf("xlsx: sheet %q has no header row", sheet.Name)
	}

	for len(rows) > 0 && isBlank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return header, rows, nil
}

// SheetNames lists the sheets of an XLSX file in workbook order.
func SheetNames(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	names := make([]string, 0, len(f.Sheets))
	for _, s := range f.Sheets {
		names = append(names, s.Name)
	}
	return names, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
