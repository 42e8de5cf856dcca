// Package table holds the in-memory labeled table used by the loaders, the
// merger and the renderer, together with the column type inference policy.
package table

import (
	"strings"

	"github.com/spbu-research/spbu-maps/internal/apperr"
)

// Kind is the inferred or pinned type of a column.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindDate   Kind = "date"
)

// ParseKind maps a user supplied dtype name onto a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "int64", "integer":
		return KindInt, true
	case "float", "float64", "double", "number", "numeric":
		return KindFloat, true
	case "string", "str", "text", "object":
		return KindString, true
	case "date", "datetime", "time":
		return KindDate, true
	}
	return "", false
}

// Column is a named, typed sequence of cells. Values hold int64, float64,
// string, time.Time or nil for missing cells.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// NonMissing counts the cells that are not nil.
func (c *Column) NonMissing() int {
	n := 0
	for _, v := range c.Values {
		if v != nil {
			n++
		}
	}
	return n
}

// Table is an ordered set of equally long columns.
type Table struct {
	Columns []*Column
	index   map[string]int
}

// New builds a table from columns. Column names must be unique and all
// columns must have the same length.
func New(cols ...*Column) (*Table, error) {
	t := &Table{Columns: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := t.index[c.Name]; dup {
			return nil, apperr.Schema(nil, "table: duplicate column %q", c.Name)
		}
		if i > 0 && len(c.Values) != len(cols[0].Values) {
			return nil, apperr.Schema(nil, "table: column %q has %d rows, want %d",
				c.Name, len(c.Values), len(cols[0].Values))
		}
		t.index[c.Name] = i
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.Columns[i], true
}

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Require returns a SchemaError naming the first missing column.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		if !t.HasColumn(n) {
			return apperr.Schema(nil, "table: column %q not found (have %s)", n, strings.Join(t.Names(), ", "))
		}
	}
	return nil
}

// Value returns the cell at row for the named column, or nil.
func (t *Table) Value(row int, name string) any {
	c, ok := t.Column(name)
	if !ok || row < 0 || row >= len(c.Values) {
		return nil
	}
	return c.Values[row]
}

// Row returns the cells of one row keyed by column name.
func (t *Table) Row(row int) map[string]any {
	m := make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		m[c.Name] = c.Values[row]
	}
	return m
}

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var rows []int
	for i := range t.Len() {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return t.take(rows)
}

// Head returns a new table with at most n leading rows.
func (t *Table) Head(n int) *Table {
	if n > t.Len() {
		n = t.Len()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.take(rows)
}

func (t *Table) take(rows []int) *Table {
	cols := make([]*Column, len(t.Columns))
	for i, c := range t.Columns {
		vals := make([]any, len(rows))
		for j, r := range rows {
			vals[j] = c.Values[r]
		}
		cols[i] = &Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	out, _ := New(cols...)
	return out
}

// Select returns a new table with only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	if err := t.Require(names...); err != nil {
		return nil, err
	}
	cols := make([]*Column, len(names))
	for i, n := range names {
		c, _ := t.Column(n)
		cols[i] = &Column{Name: c.Name, Kind: c.Kind, Values: append([]any(nil), c.Values...)}
	}
	return New(cols...)
}

// Coerce returns a copy of the table with the named column converted to
// kind. Cells that cannot be converted become missing.
func (t *Table) Coerce(name string, kind Kind) (*Table, error) {
	if err := t.Require(name); err != nil {
		return nil, err
	}
	cols := make([]*Column, len(t.Columns))
	for i, c := range t.Columns {
		if c.Name != name {
			cols[i] = c
			continue
		}
		vals := make([]any, len(c.Values))
		for j, v := range c.Values {
			vals[j] = Convert(v, kind)
		}
		cols[i] = &Column{Name: c.Name, Kind: kind, Values: vals}
	}
	return New(cols...)
}

// WithColumn returns a copy of the table with c appended, or replacing an
// existing column of the same name.
func (t *Table) WithColumn(c *Column) (*Table, error) {
	cols := make([]*Column, 0, len(t.Columns)+1)
	replaced := false
	for _, existing := range t.Columns {
		if existing.Name == c.Name {
			cols = append(cols, c)
			replaced = true
			continue
		}
		cols = append(cols, existing)
	}
	if !replaced {
		cols = append(cols, c)
	}
	return New(cols...)
}

// Rename returns a copy of the table with column from called to. Renaming
// onto an existing column is a SchemaError.
func (t *Table) Rename(from, to string) (*Table, error) {
	if err := t.Require(from); err != nil {
		return nil, err
	}
	if from == to {
		return t, nil
	}
	if t.HasColumn(to) {
		return nil, apperr.Schema(nil, "table: cannot rename %q to existing column %q", from, to)
	}
	cols := make([]*Column, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c
		if c.Name == from {
			cols[i] = &Column{Name: to, Kind: c.Kind, Values: c.Values}
		}
	}
	return New(cols...)
}
