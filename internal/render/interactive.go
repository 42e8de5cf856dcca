package render

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"html"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

//go:embed map.html.tmpl
var mapTemplateText string

var mapTemplate = template.Must(template.New("map").Parse(mapTemplateText))

// Property keys carrying per-feature presentation data into the page.
const (
	styleKey   = "_style"
	tooltipKey = "_tooltip"
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("spbu-maps"))

// elementID derives a stable DOM id from parts, so the same input always
// renders the same page.
func elementID(prefix string, parts ...string) string {
	u := uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x00")))
	return prefix + "_" + strings.ReplaceAll(u.String(), "-", "")
}

// Map is an interactive web map ready to be written as HTML.
type Map struct {
	ID        string
	Title     string
	CenterLat float64
	CenterLon float64
	Zoom      int
	Tiles     TileProvider
	Layers    []*MapLayer
	Legend    *Legend

	elements int
}

// MapLayer is one overlay. Data is a GeoJSON FeatureCollection for
// choropleth and borders layers and a marker list for labels.
type MapLayer struct {
	ID        string
	Name      string
	Kind      LayerKind
	Hidden    bool
	Highlight bool
	Data      json.RawMessage
	Elements  int
}

// Legend is the colour key of the first choropleth layer.
type Legend struct {
	ID      string
	Caption string
	Colors  []string
	Ticks   []string
}

type labelMarker struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Text string  `json:"text"`
}

// Elements returns the number of styled features and markers on the map.
func (m *Map) Elements() int {
	return m.elements
}

// LayerControl reports whether the page offers a layer switcher.
func (m *Map) LayerControl() bool {
	return len(m.Layers) > 1
}

// Interactive builds a Leaflet map of c. Nothing is written.
func Interactive(c *geo.Collection, opts Options) (*Map, error) {
	if c == nil {
		return nil, checkInput(c)
	}
	opts = opts.withDefaults()
	layers := opts.layers()
	for _, l := range layers {
		if err := checkLayer(l.source(c), l); err != nil {
			return nil, err
		}
	}
	if err := checkInput(c); err != nil {
		return nil, err
	}
	tiles, err := ResolveTiles(opts.Tiles)
	if err != nil {
		return nil, err
	}
	if _, err := ResolvePalette(opts.Palette); err != nil {
		return nil, err
	}

	lat, lon, _ := c.Center()
	m := &Map{
		Title:     opts.Title,
		CenterLat: lat,
		CenterLon: lon,
		Zoom:      opts.ZoomStart,
		Tiles:     tiles,
	}
	m.ID = elementID("map", opts.Title, opts.ValueColumn, strconv.Itoa(c.Len()), strconv.Itoa(len(layers)))

	for i, l := range layers {
		if l.Name == "" {
			l.Name = string(l.Kind) + " " + strconv.Itoa(i+1)
		}
		src := l.source(c)
		var ml *MapLayer
		switch l.Kind {
		case LayerLabels:
			ml, err = labelLayer(src, l)
		default:
			var s *scale
			if l.Column != "" && l.Kind != LayerBorders {
				if s, err = newScale(src, l.Column, opts.Palette, opts.Bins); err != nil {
					return nil, err
				}
				if m.Legend == nil && l.Kind == LayerChoropleth {
					m.Legend = newLegend(m.ID, opts.Legend, s.cm)
				}
			}
			ml, err = shapeLayer(src, l, s, opts)
		}
		if err != nil {
			return nil, err
		}
		ml.ID = elementID("layer", m.ID, strconv.Itoa(i), l.Name)
		m.Layers = append(m.Layers, ml)
		m.elements += ml.Elements
	}
	return m, nil
}

func shapeLayer(c *geo.Collection, l Layer, s *scale, opts Options) (*MapLayer, error) {
	weight := l.Weight
	if weight == 0 {
		weight = opts.LineWeight
	}
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, c.Len())}
	for _, r := range c.Records {
		if r.Geometry == nil {
			continue
		}
		props := make(map[string]any, len(c.Columns)+2)
		for _, col := range c.Columns {
			props[col] = jsonSafe(r.Properties[col])
		}

		var st featureStyle
		switch {
		case s == nil && l.Kind == LayerPoints:
			color := l.Color
			if color == "" {
				color = DefaultPointColor
			}
			st = featureStyle{FillColor: color, FillOpacity: 0.9, Color: color, Weight: weight, Opacity: 1}
		case s == nil:
			color := l.Color
			if color == "" {
				color = DefaultBorderColor
			}
			st = featureStyle{FillColor: color, FillOpacity: 0, Color: color, Weight: weight, Opacity: 1}
		default:
			fill, ok := s.fill(r.Properties)
			st = featureStyle{FillColor: fill, FillOpacity: opts.FillOpacity, Color: "#000000", Weight: weight, Opacity: opts.LineOpacity}
			if !ok {
				st.FillColor, st.FillOpacity = MissingColor, MissingOpacity
			}
			if l.Color != "" {
				st.Color = l.Color
			}
		}
		props[styleKey] = st
		if tip := tooltipHTML(r.Properties, l.Fields, l.Aliases); tip != "" {
			props[tooltipKey] = tip
		}
		fc.Features = append(fc.Features, &geojson.Feature{Geometry: r.Geometry, Properties: props})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, apperr.Render(err, "render: encode layer %q", l.Name)
	}
	return &MapLayer{
		Name:      l.Name,
		Kind:      l.Kind,
		Hidden:    l.Hidden,
		Highlight: l.Kind != LayerPoints,
		Data:      data,
		Elements:  len(fc.Features),
	}, nil
}

func labelLayer(c *geo.Collection, l Layer) (*MapLayer, error) {
	markers := make([]labelMarker, 0, c.Len())
	for _, r := range c.Records {
		text := displayValue(r.Properties[l.Column])
		if text == "" {
			continue
		}
		x, y, ok := geo.Centroid(r.Geometry)
		if !ok {
			continue
		}
		markers = append(markers, labelMarker{Lat: y, Lon: x, Text: html.EscapeString(text)})
	}
	data, err := json.Marshal(markers)
	if err != nil {
		return nil, apperr.Render(err, "render: encode layer %q", l.Name)
	}
	return &MapLayer{Name: l.Name, Kind: l.Kind, Hidden: l.Hidden, Data: data, Elements: len(markers)}, nil
}

func newLegend(mapID, caption string, cm *Colormap) *Legend {
	lg := &Legend{ID: elementID("legend", mapID), Caption: caption}
	if len(cm.Bins) >= 2 {
		steps := len(cm.Bins) - 1
		for i := 0; i < steps; i++ {
			t := 0.5
			if steps > 1 {
				t = float64(i) / float64(steps-1)
			}
			lg.Colors = append(lg.Colors, cm.At(t).Hex())
		}
		for _, b := range cm.Bins {
			lg.Ticks = append(lg.Ticks, formatNumber(b))
		}
		return lg
	}
	lg.Colors = cm.Gradient(len(cm.Stops))
	lg.Ticks = []string{formatNumber(cm.Min), formatNumber(cm.Max)}
	return lg
}

// WriteHTML renders the page to w.
func (m *Map) WriteHTML(w io.Writer) error {
	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, m); err != nil {
		return apperr.Render(err, "render: execute map template")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return eris.Wrap(err, "render: write map")
	}
	return nil
}

// Save writes the page to path atomically.
func (m *Map) Save(path string) (*Artifact, error) {
	if err := workspace.WriteFileAtomic(path, m.WriteHTML); err != nil {
		return nil, err
	}
	a := &Artifact{
		Path:      path,
		Format:    FormatHTML,
		Elements:  m.elements,
		Layers:    len(m.Layers),
		CenterLat: m.CenterLat,
		CenterLon: m.CenterLon,
	}
	zap.L().Info("map saved",
		zap.String("component", "render"),
		zap.String("path", path),
		zap.String("format", string(a.Format)),
		zap.Int("elements", a.Elements),
		zap.Int("layers", a.Layers),
	)
	return a, nil
}
