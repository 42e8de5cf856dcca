// Package mapspec reads declarative map definitions from YAML. A definition
// names a table, a geometry file, how to join them and which layers to draw.
package mapspec

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/table"
)

// File is the top-level document.
type File struct {
	Defaults Defaults `yaml:"defaults"`
	Maps     []Map    `yaml:"maps"`
}

// Defaults apply to every map that leaves the field empty.
type Defaults struct {
	Tiles       string  `yaml:"tiles"`
	Palette     string  `yaml:"palette"`
	Zoom        int     `yaml:"zoom"`
	FillOpacity float64 `yaml:"fill_opacity"`
}

// Map is one map to build.
type Map struct {
	Name        string         `yaml:"name"`
	Title       string         `yaml:"title"`
	Output      string         `yaml:"output"` // relative to the maps dir; .html or .png
	Table       TableSource    `yaml:"table"`
	Geometry    GeometrySource `yaml:"geometry"`
	Join        Join           `yaml:"join"`
	Layers      []Layer        `yaml:"layers"`
	Legend      string         `yaml:"legend"`
	Tiles       string         `yaml:"tiles"`
	Palette     string         `yaml:"palette"`
	Bins        []float64      `yaml:"bins"`
	Zoom        int            `yaml:"zoom"`
	FillOpacity float64        `yaml:"fill_opacity"`
}

// TableSource describes the attribute table.
type TableSource struct {
	Path         string            `yaml:"path"` // relative to the data dir
	Delimiter    string            `yaml:"delimiter"`
	Encoding     string            `yaml:"encoding"`
	Sheet        string            `yaml:"sheet"`
	SkipRows     int               `yaml:"skip_rows"`
	DecimalComma bool              `yaml:"decimal_comma"`
	Dtypes       map[string]string `yaml:"dtypes"`
	Key          string            `yaml:"key"`
	Value        string            `yaml:"value"`
	PositiveOnly bool              `yaml:"positive_only"` // drop rows whose value is missing or <= 0
	Aggregate    []Metric          `yaml:"aggregate"`     // group by Key before joining
}

// Metric is one aggregation of the value column (or Column).
type Metric struct {
	Func   string `yaml:"func"`
	Column string `yaml:"column"`
	As     string `yaml:"as"`
}

// GeometrySource describes the geometry file.
type GeometrySource struct {
	Path          string   `yaml:"path"` // relative to the geojson dir
	Key           string   `yaml:"key"`
	KeyFrom       []string `yaml:"key_from"`        // derive Key from the first non-empty property path
	FilterToTable bool     `yaml:"filter_to_table"` // keep only records whose key is in the table
}

// Join configures the merge.
type Join struct {
	How      string   `yaml:"how"`
	Suffixes []string `yaml:"suffixes"`
}

// Layer is one overlay.
type Layer struct {
	Name    string       `yaml:"name"`
	Kind    string       `yaml:"kind"`
	Column  string       `yaml:"column"`
	Fields  []string     `yaml:"fields"`
	Aliases []string     `yaml:"aliases"`
	Color   string       `yaml:"color"`
	Weight  float64      `yaml:"weight"`
	Hidden  bool         `yaml:"hidden"`
	Points  *PointSource `yaml:"points"`
}

// PointSource is a second table drawn as points from lat/lon columns.
type PointSource struct {
	Path         string `yaml:"path"`
	Delimiter    string `yaml:"delimiter"`
	Encoding     string `yaml:"encoding"`
	DecimalComma bool   `yaml:"decimal_comma"`
	Lat          string `yaml:"lat"`
	Lon          string `yaml:"lon"`
	Value        string `yaml:"value"`
	PositiveOnly bool   `yaml:"positive_only"`
}

var layerKinds = map[string]bool{"choropleth": true, "borders": true, "labels": true, "points": true}

// Load reads and validates a definition file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFound(err, "mapspec: %s", path)
		}
		return nil, apperr.Parse(err, "mapspec: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a definition document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperr.Parse(err, "mapspec: parse yaml")
	}
	if len(f.Maps) == 0 {
		return nil, apperr.Parse(nil, "mapspec: no maps defined")
	}
	seen := make(map[string]bool, len(f.Maps))
	for i := range f.Maps {
		m := &f.Maps[i]
		m.applyDefaults(f.Defaults)
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if seen[m.Name] {
			return nil, apperr.Parse(nil, "mapspec: duplicate map name %q", m.Name)
		}
		seen[m.Name] = true
	}
	return &f, nil
}

// Find returns the map called name.
func (f *File) Find(name string) (*Map, error) {
	for i := range f.Maps {
		if f.Maps[i].Name == name {
			return &f.Maps[i], nil
		}
	}
	names := make([]string, len(f.Maps))
	for i, m := range f.Maps {
		names[i] = m.Name
	}
	return nil, apperr.NotFound(nil, "mapspec: no map %q (have %s)", name, strings.Join(names, ", "))
}

func (m *Map) applyDefaults(d Defaults) {
	if m.Tiles == "" {
		m.Tiles = d.Tiles
	}
	if m.Palette == "" {
		m.Palette = d.Palette
	}
	if m.Zoom == 0 {
		m.Zoom = d.Zoom
	}
	if m.FillOpacity == 0 {
		m.FillOpacity = d.FillOpacity
	}
	if m.Output == "" && m.Name != "" {
		m.Output = m.Name + ".html"
	}
	if m.Title == "" {
		m.Title = m.Name
	}
	if m.Join.How == "" {
		m.Join.How = "left"
	}
	for i := range m.Table.Aggregate {
		a := &m.Table.Aggregate[i]
		if a.Column == "" {
			a.Column = m.Table.Value
		}
		if a.As == "" {
			a.As = strings.ToLower(a.Func)
		}
	}
	if len(m.Layers) == 0 {
		if col := m.ValueColumn(); col != "" {
			m.Layers = []Layer{{Name: m.legendOr(col), Kind: "choropleth", Column: col}}
		} else {
			m.Layers = []Layer{{Name: "Borders", Kind: "borders"}}
		}
	}
}

func (m *Map) legendOr(col string) string {
	if m.Legend != "" {
		return m.Legend
	}
	return col
}

// ValueColumn is the column the map is coloured by: the first aggregate
// output, else the table value column.
func (m *Map) ValueColumn() string {
	if len(m.Table.Aggregate) > 0 {
		return m.Table.Aggregate[0].As
	}
	return m.Table.Value
}

// Validate checks a map after defaults have been applied.
func (m *Map) Validate() error {
	fail := func(format string, args ...any) error {
		return apperr.Parse(nil, "mapspec: map %q: "+format, append([]any{m.Name}, args...)...)
	}
	if m.Name == "" {
		return apperr.Parse(nil, "mapspec: map without a name")
	}
	if m.Table.Path == "" {
		return fail("table.path is required")
	}
	if m.Table.Key == "" {
		return fail("table.key is required")
	}
	if m.Geometry.Path == "" {
		return fail("geometry.path is required")
	}
	if m.Geometry.Key == "" {
		return fail("geometry.key is required")
	}
	if _, err := table.ParseDelimiter(m.Table.Delimiter); err != nil {
		return fail("table.delimiter: %v", err)
	}
	for col, kind := range m.Table.Dtypes {
		if _, ok := table.ParseKind(kind); !ok {
			return fail("table.dtypes.%s: unknown kind %q", col, kind)
		}
	}
	if m.Table.PositiveOnly && m.Table.Value == "" {
		return fail("table.positive_only needs table.value")
	}
	for _, a := range m.Table.Aggregate {
		if !table.IsAggFunc(a.Func) {
			return fail("unknown aggregation %q", a.Func)
		}
		if a.Column == "" {
			return fail("aggregation %q has no column and table.value is empty", a.Func)
		}
	}
	if m.Join.How != "left" && m.Join.How != "inner" {
		return fail("join.how must be left or inner, got %q", m.Join.How)
	}
	if len(m.Join.Suffixes) != 0 && len(m.Join.Suffixes) != 2 {
		return fail("join.suffixes needs exactly two entries")
	}
	if m.Zoom < 0 || m.Zoom > 22 {
		return fail("zoom %d out of range [0, 22]", m.Zoom)
	}
	if m.FillOpacity < 0 || m.FillOpacity > 1 {
		return fail("fill_opacity %.2f out of range [0, 1]", m.FillOpacity)
	}
	if !strings.HasSuffix(strings.ToLower(m.Output), ".html") && !strings.HasSuffix(strings.ToLower(m.Output), ".png") {
		return fail("output %q must end in .html or .png", m.Output)
	}
	for i, l := range m.Layers {
		if !layerKinds[l.Kind] {
			return fail("layer %d: unknown kind %q", i, l.Kind)
		}
		if (l.Kind == "choropleth" || l.Kind == "labels") && l.Column == "" {
			return fail("layer %d: %s needs a column", i, l.Kind)
		}
		if l.Points != nil && l.Kind != "points" {
			return fail("layer %d: points source on a %s layer", i, l.Kind)
		}
		if l.Points != nil {
			if l.Points.Path == "" {
				return fail("layer %d: points.path is required", i)
			}
			if _, err := table.ParseDelimiter(l.Points.Delimiter); err != nil {
				return fail("layer %d: points.delimiter: %v", i, err)
			}
		}
		if len(l.Aliases) > 0 && len(l.Aliases) != len(l.Fields) {
			return fail("layer %d: %d aliases for %d fields", i, len(l.Aliases), len(l.Fields))
		}
	}
	return nil
}
