// Package geo loads, reshapes and saves keyed geometry collections read from
// GeoJSON or ESRI shapefiles.
package geo

import (
	"maps"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/table"
)

// Record is one feature: a geometry (possibly nil) and its attributes.
type Record struct {
	Geometry   geom.T
	Properties map[string]any
}

// Collection is an ordered set of records. Columns lists attribute names in
// first-seen order. IDColumn, when set, names the lookup key; keys are not
// required to be unique.
type Collection struct {
	Columns  []string
	Records  []*Record
	IDColumn string
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return len(c.Records)
}

// HasColumn reports whether name is one of the collection's attributes.
func (c *Collection) HasColumn(name string) bool {
	for _, col := range c.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Require returns a SchemaError naming the first missing attribute.
func (c *Collection) Require(names ...string) error {
	for _, n := range names {
		if !c.HasColumn(n) {
			return apperr.Schema(nil, "geo: property %q not found (have %s)", n, strings.Join(c.Columns, ", "))
		}
	}
	return nil
}

// Values returns the named attribute of every record, nil where absent.
func (c *Collection) Values(name string) []any {
	out := make([]any, len(c.Records))
	for i, r := range c.Records {
		out[i] = r.Properties[name]
	}
	return out
}

// Clone copies the collection and every property map. Geometries are shared.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Columns:  append([]string(nil), c.Columns...),
		Records:  make([]*Record, len(c.Records)),
		IDColumn: c.IDColumn,
	}
	for i, r := range c.Records {
		out.Records[i] = &Record{Geometry: r.Geometry, Properties: maps.Clone(r.Properties)}
		if out.Records[i].Properties == nil {
			out.Records[i].Properties = map[string]any{}
		}
	}
	return out
}

// AddColumn appends name to Columns unless already present.
func (c *Collection) AddColumn(name string) {
	if !c.HasColumn(name) {
		c.Columns = append(c.Columns, name)
	}
}

// DeriveKey returns a copy of the collection where property name holds the
// first non-empty value found at paths. A path may be dotted to reach into
// nested objects, e.g. "options.cad_num".
func (c *Collection) DeriveKey(name string, paths ...string) *Collection {
	out := c.Clone()
	out.AddColumn(name)
	for _, r := range out.Records {
		var key any
		for _, p := range paths {
			v := Lookup(r.Properties, p)
			if k, ok := table.KeyString(v); ok {
				key = k
				break
			}
		}
		r.Properties[name] = key
	}
	return out
}

// Lookup resolves a dotted path in nested property maps.
func Lookup(props map[string]any, path string) any {
	if v, ok := props[path]; ok {
		return v
	}
	cur := any(props)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// FilterKeys keeps the records that have a geometry and whose key in column
// is in allowed.
func (c *Collection) FilterKeys(column string, allowed map[string]bool) *Collection {
	out := &Collection{Columns: append([]string(nil), c.Columns...), IDColumn: c.IDColumn}
	for _, r := range c.Records {
		if r.Geometry == nil {
			continue
		}
		k, ok := table.KeyString(r.Properties[column])
		if ok && allowed[k] {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// AttributeTable returns the record attributes as a table, one row per
// record, with kinds inferred from the values.
func (c *Collection) AttributeTable() (*table.Table, error) {
	cols := make([]*table.Column, len(c.Columns))
	for i, name := range c.Columns {
		vals := c.Values(name)
		kind := kindOf(vals)
		if kind != table.KindString {
			for j, v := range vals {
				vals[j] = table.Convert(v, kind)
			}
		}
		cols[i] = &table.Column{Name: name, Kind: kind, Values: vals}
	}
	return table.New(cols...)
}

func kindOf(vals []any) table.Kind {
	kind := table.Kind("")
	for _, v := range vals {
		var k table.Kind
		switch v.(type) {
		case nil:
			continue
		case int64:
			k = table.KindInt
		case float64:
			k = table.KindFloat
		default:
			return table.KindString
		}
		switch {
		case kind == "":
			kind = k
		case kind != k:
			kind = table.KindFloat
		}
	}
	if kind == "" {
		return table.KindString
	}
	return kind
}
