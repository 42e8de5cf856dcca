// Package render draws joined geometry collections as interactive Leaflet
// pages or static PNG images.
package render

import (
	"path/filepath"
	"strings"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/geo"
)

// Format is an output artifact format.
type Format string

// Supported formats.
const (
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
)

// LayerKind selects how a layer is drawn.
type LayerKind string

// Layer kinds.
const (
	// LayerChoropleth fills every geometry by the value of Column.
	LayerChoropleth LayerKind = "choropleth"
	// LayerBorders draws outlines only.
	LayerBorders LayerKind = "borders"
	// LayerLabels places the text of Column at each record's centroid.
	LayerLabels LayerKind = "labels"
	// LayerPoints draws circle markers, coloured by Column when set.
	LayerPoints LayerKind = "points"
)

// Defaults shared by both renderers.
const (
	DefaultTiles       = "cartodbpositron"
	DefaultPalette     = "YlGnBu"
	DefaultZoom        = 10
	DefaultFillOpacity = 0.7
	DefaultLineOpacity = 0.2
	DefaultLineWeight  = 1.0
	DefaultBorderColor = "#3388ff"
	DefaultPointColor  = "#000000"

	MissingColor   = "#dddddd"
	MissingOpacity = 0.1
)

// Layer describes one overlay of an interactive map.
type Layer struct {
	Name    string
	Kind    LayerKind
	Column  string
	Fields  []string // tooltip columns
	Aliases []string // tooltip labels, same length as Fields when set
	Color   string   // outline colour
	Weight  float64
	Hidden  bool // added to the layer control but not shown initially

	// Source replaces the rendered collection for this layer, e.g. offer
	// points drawn over joined areas.
	Source *geo.Collection
}

func (l Layer) source(c *geo.Collection) *geo.Collection {
	if l.Source != nil {
		return l.Source
	}
	return c
}

// Options configures a render. Zero values fall back to the package defaults.
type Options struct {
	ValueColumn    string
	Legend         string // legend caption; defaults to ValueColumn
	Tiles          string
	Palette        string
	Bins           []float64
	ZoomStart      int
	FillOpacity    float64
	LineOpacity    float64
	LineWeight     float64
	TooltipColumns []string
	TooltipAliases []string
	Title          string

	// Layers overrides the default single layer built from ValueColumn and
	// the tooltip settings.
	Layers []Layer

	// Width and Height size static images, in pixels.
	Width  int
	Height int

	// Format forces the output format; empty means by file extension.
	Format Format
}

func (o Options) withDefaults() Options {
	if o.Tiles == "" {
		o.Tiles = DefaultTiles
	}
	if o.Palette == "" {
		o.Palette = DefaultPalette
	}
	if o.ZoomStart == 0 {
		o.ZoomStart = DefaultZoom
	}
	if o.FillOpacity == 0 {
		o.FillOpacity = DefaultFillOpacity
	}
	if o.LineOpacity == 0 {
		o.LineOpacity = DefaultLineOpacity
	}
	if o.LineWeight == 0 {
		o.LineWeight = DefaultLineWeight
	}
	if o.Legend == "" {
		o.Legend = o.ValueColumn
	}
	if o.Title == "" {
		o.Title = "Map"
	}
	return o
}

// layers returns the explicit layers or the default one.
func (o Options) layers() []Layer {
	if len(o.Layers) > 0 {
		return o.Layers
	}
	if o.ValueColumn != "" {
		return []Layer{{
			Name:    o.Legend,
			Kind:    LayerChoropleth,
			Column:  o.ValueColumn,
			Fields:  o.TooltipColumns,
			Aliases: o.TooltipAliases,
		}}
	}
	return []Layer{{
		Name:    "Geometry",
		Kind:    LayerBorders,
		Fields:  o.TooltipColumns,
		Aliases: o.TooltipAliases,
	}}
}

// Artifact describes a written map.
type Artifact struct {
	Path      string
	Format    Format
	Elements  int // styled features plus label markers
	Layers    int
	CenterLat float64
	CenterLon float64
}

// FormatFor resolves the output format from an explicit choice or the
// extension of path.
func FormatFor(path string, explicit Format) (Format, error) {
	if explicit != "" {
		switch Format(strings.ToLower(string(explicit))) {
		case FormatHTML:
			return FormatHTML, nil
		case FormatPNG:
			return FormatPNG, nil
		}
		return "", apperr.Render(nil, "render: unsupported format %q", explicit)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FormatHTML, nil
	case ".png":
		return FormatPNG, nil
	}
	return "", apperr.Render(nil, "render: cannot infer format from %q (use .html or .png)", path)
}

// Render writes c to path as an interactive page or a static image.
func Render(c *geo.Collection, opts Options, path string) (*Artifact, error) {
	format, err := FormatFor(path, opts.Format)
	if err != nil {
		return nil, err
	}
	if format == FormatPNG {
		return Static(c, StaticOptions{
			ValueColumn: opts.ValueColumn,
			Palette:     opts.Palette,
			Bins:        opts.Bins,
			Width:       opts.Width,
			Height:      opts.Height,
			Legend:      opts.ValueColumn != "",
		}, path)
	}
	m, err := Interactive(c, opts)
	if err != nil {
		return nil, err
	}
	return m.Save(path)
}

// checkInput rejects collections that cannot be drawn.
func checkInput(c *geo.Collection) error {
	if c == nil || c.Len() == 0 {
		return apperr.Render(nil, "render: collection is empty; nothing to plot")
	}
	if _, ok := c.Bounds(); !ok {
		return apperr.Render(nil, "render: no record has a geometry; nothing to plot")
	}
	return nil
}

func checkLayer(c *geo.Collection, l Layer) error {
	switch l.Kind {
	case LayerChoropleth, LayerLabels:
		if l.Column == "" {
			return apperr.Render(nil, "render: %s layer %q needs a column", l.Kind, l.Name)
		}
		if err := c.Require(l.Column); err != nil {
			return apperr.Schema(err, "render: layer %q", l.Name)
		}
	case LayerBorders:
	case LayerPoints:
		if l.Column != "" {
			if err := c.Require(l.Column); err != nil {
				return apperr.Schema(err, "render: layer %q", l.Name)
			}
		}
	default:
		return apperr.Render(nil, "render: unknown layer kind %q", l.Kind)
	}
	if err := c.Require(l.Fields...); err != nil {
		return apperr.Schema(err, "render: tooltip of layer %q", l.Name)
	}
	if len(l.Aliases) > 0 && len(l.Aliases) != len(l.Fields) {
		return apperr.Render(nil, "render: layer %q has %d tooltip aliases for %d fields", l.Name, len(l.Aliases), len(l.Fields))
	}
	return nil
}
