package pipeline

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/config"
	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/mapspec"
	"github.com/spbu-research/spbu-maps/internal/render"
	"github.com/spbu-research/spbu-maps/internal/table"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

const twoAreas = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"area_id": 1, "name": "North"},
     "geometry": {"type": "Polygon", "coordinates": [[[30.0, 59.9], [30.1, 59.9], [30.1, 60.0], [30.0, 60.0], [30.0, 59.9]]]}},
    {"type": "Feature", "properties": {"area_id": 2, "name": "South"},
     "geometry": {"type": "Polygon", "coordinates": [[[30.0, 59.8], [30.1, 59.8], [30.1, 59.9], [30.0, 59.9], [30.0, 59.8]]]}}
  ]
}`

func testConfig(root string) *config.Config {
	return &config.Config{
		Paths: config.PathsConfig{
			Root:       root,
			DataDir:    "data",
			GeoJSONDir: "geojsons",
			RawDataDir: "raw_data",
			OutputsDir: "outputs",
			MapsDir:    "maps",
		},
		Render: config.RenderConfig{
			Tiles:       render.DefaultTiles,
			Palette:     render.DefaultPalette,
			ZoomStart:   render.DefaultZoom,
			FillOpacity: render.DefaultFillOpacity,
			LineOpacity: render.DefaultLineOpacity,
			LineWeight:  render.DefaultLineWeight,
			Width:       200,
			Height:      200,
		},
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, *workspace.Workspace) {
	t.Helper()
	cfg := testConfig(t.TempDir())
	ws := workspace.New(cfg.Paths)
	return New(cfg, ws), ws
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestQuickMap_EndToEnd(t *testing.T) {
	p, ws := newTestPipeline(t)
	writeFile(t, ws.TablePath("prices.csv"), "area_id,price\n1,100\n2,200\n")
	writeFile(t, ws.GeometryPath("areas.geojson"), twoAreas)

	a, err := p.QuickMap(context.Background(), QuickOptions{
		Table:       "prices.csv",
		Geometry:    "areas.geojson",
		IDColumn:    "area_id",
		ValueColumn: "price",
	})
	require.NoError(t, err)
	assert.Equal(t, ws.OutputPath(DefaultQuickMapOutput), a.Path)
	assert.Equal(t, 2, a.Elements)

	page, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Contains(t, string(page), `"fillColor":"#ffffd9"`)
	assert.Contains(t, string(page), `"fillColor":"#081d58"`)
}

func TestQuickMap_Points(t *testing.T) {
	p, ws := newTestPipeline(t)
	writeFile(t, ws.TablePath("offers.csv"), "lat,lon,price\n59.93,30.31,100\n59.95,30.35,150\nbad,30.1,1\n")

	a, err := p.QuickMap(context.Background(), QuickOptions{
		Table:       "offers.csv",
		ValueColumn: "price",
		Output:      "offers.html",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Elements)
	assert.FileExists(t, ws.OutputPath("offers.html"))
}

func TestQuickMap_PNG(t *testing.T) {
	p, ws := newTestPipeline(t)
	writeFile(t, ws.TablePath("prices.csv"), "area_id,price\n1,100\n2,200\n")
	writeFile(t, ws.GeometryPath("areas.geojson"), twoAreas)

	a, err := p.QuickMap(context.Background(), QuickOptions{
		Table:       "prices.csv",
		Geometry:    "areas.geojson",
		IDColumn:    "area_id",
		ValueColumn: "price",
		Output:      "prices.png",
	})
	require.NoError(t, err)
	assert.Equal(t, render.FormatPNG, a.Format)

	data, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestQuickMap_PNGUsesStaticPaletteByDefault(t *testing.T) {
	p, ws := newTestPipeline(t)
	p.cfg.Render.Palette = ""
	writeFile(t, ws.TablePath("prices.csv"), "area_id,price\n1,100\n2,200\n")
	writeFile(t, ws.GeometryPath("areas.geojson"), twoAreas)

	a, err := p.QuickMap(context.Background(), QuickOptions{
		Table:       "prices.csv",
		Geometry:    "areas.geojson",
		IDColumn:    "area_id",
		ValueColumn: "price",
		Output:      "prices.png",
	})
	require.NoError(t, err)

	f, err := os.Open(a.Path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	img, err := png.Decode(f)
	require.NoError(t, err)

	viridisLow := color.RGBA{R: 0x44, G: 0x01, B: 0x54, A: 0xff}
	ylgnbuHigh := color.RGBA{R: 0x08, G: 0x1d, B: 0x58, A: 0xff}
	var sawViridis, sawYlGnBu bool
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			switch color.RGBAModel.Convert(img.At(x, y)) {
			case viridisLow:
				sawViridis = true
			case ylgnbuHigh:
				sawYlGnBu = true
			}
		}
	}
	assert.True(t, sawViridis, "static maps default to viridis")
	assert.False(t, sawYlGnBu)
}

func TestQuickMap_Errors(t *testing.T) {
	p, ws := newTestPipeline(t)
	writeFile(t, ws.TablePath("prices.csv"), "area_id,price\n1,100\n2,200\n")
	writeFile(t, ws.GeometryPath("areas.geojson"), twoAreas)

	tests := []struct {
		name string
		opts QuickOptions
		kind apperr.Kind
	}{
		{"missing table", QuickOptions{Table: "nope.csv", Geometry: "areas.geojson", IDColumn: "area_id"}, apperr.KindNotFound},
		{"missing geometry", QuickOptions{Table: "prices.csv", Geometry: "nope.geojson", IDColumn: "area_id"}, apperr.KindNotFound},
		{"missing value column", QuickOptions{Table: "prices.csv", Geometry: "areas.geojson", IDColumn: "area_id", ValueColumn: "rent"}, apperr.KindSchema},
		{"missing id column", QuickOptions{Table: "prices.csv", Geometry: "areas.geojson", IDColumn: "quarter"}, apperr.KindSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.QuickMap(context.Background(), tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.NoFileExists(t, ws.OutputPath(DefaultQuickMapOutput))
		})
	}

	_, err := p.QuickMap(context.Background(), QuickOptions{Table: "prices.csv", Geometry: "areas.geojson"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id column is required")
}

const quartersGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"label": "78:1"},
     "geometry": {"type": "Polygon", "coordinates": [[[30.0, 59.9], [30.1, 59.9], [30.1, 60.0], [30.0, 60.0], [30.0, 59.9]]]}},
    {"type": "Feature", "properties": {"options": {"cad_num": "78:2"}},
     "geometry": {"type": "Polygon", "coordinates": [[[30.1, 59.9], [30.2, 59.9], [30.2, 60.0], [30.1, 60.0], [30.1, 59.9]]]}},
    {"type": "Feature", "properties": {"label": "78:9"},
     "geometry": {"type": "Polygon", "coordinates": [[[30.2, 59.9], [30.3, 59.9], [30.3, 60.0], [30.2, 60.0], [30.2, 59.9]]]}}
  ]
}`

const dealsYAML = `
maps:
  - name: deals
    table:
      path: deals.csv
      delimiter: ";"
      key: quarter_cad_number
      value: price_per_sqm
      positive_only: true
      dtypes: { quarter_cad_number: string }
      aggregate:
        - { func: median }
        - { func: count, as: deals }
    geometry:
      path: quarters.geojson
      key: cadnum
      key_from: [externalKey, label, options.cad_num]
      filter_to_table: true
    layers:
      - name: Median price
        kind: choropleth
        column: median
        fields: [cadnum, median, deals]
        aliases: [Quarter, Median, Deals]
      - name: Quarter borders
        kind: borders
        color: "#000000"
        weight: 3
      - name: Offers
        kind: points
        points: { path: bids.csv, lat: lat, lon: lon, value: price_per_sqm, positive_only: true }
  - name: outline
    table: { path: deals.csv, delimiter: ";", key: quarter_cad_number }
    geometry: { path: quarters.geojson, key: cadnum, key_from: [label, options.cad_num] }
    output: outline.png
`

func writeDeals(t *testing.T, ws *workspace.Workspace) {
	t.Helper()
	writeFile(t, ws.TablePath("deals.csv"),
		"quarter_cad_number;price_per_sqm\n78:1;100\n78:1;300\n78:2;-5\n78:2;250\n78:3;50\n")
	writeFile(t, ws.TablePath("bids.csv"), "lat,lon,price_per_sqm\n59.95,30.05,120\n59.95,30.15,0\n")
	writeFile(t, ws.GeometryPath("quarters.geojson"), quartersGeoJSON)
}

func TestBuild(t *testing.T) {
	p, ws := newTestPipeline(t)
	writeDeals(t, ws)
	f, err := mapspec.Parse([]byte(dealsYAML))
	require.NoError(t, err)
	m, err := f.Find("deals")
	require.NoError(t, err)

	a, err := p.Build(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, ws.MapPath("deals.html"), a.Path)
	assert.Equal(t, 3, a.Layers)
	// two quarters left after filtering, drawn twice, plus one positive offer
	assert.Equal(t, 5, a.Elements)

	page, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "Median price")
	assert.Contains(t, html, "Quarter borders")
	assert.Contains(t, html, "L.control.layers")
	assert.Contains(t, html, "Quarter")
	assert.NotContains(t, html, "78:9")
}

func TestBuild_StaticOutline(t *testing.T) {
	p, ws := newTestPipeline(t)
	writeDeals(t, ws)
	f, err := mapspec.Parse([]byte(dealsYAML))
	require.NoError(t, err)
	m, err := f.Find("outline")
	require.NoError(t, err)

	a, err := p.Build(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, render.FormatPNG, a.Format)
	assert.FileExists(t, ws.MapPath("outline.png"))
}

func TestBuildTable_AggregatesAndRenames(t *testing.T) {
	p, ws := newTestPipeline(t)
	writeDeals(t, ws)
	f, err := mapspec.Parse([]byte(dealsYAML))
	require.NoError(t, err)
	m, err := f.Find("deals")
	require.NoError(t, err)

	tbl, err := p.buildTable(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"cadnum", "median", "deals"}, tbl.Names())
	col, _ := tbl.Column("cadnum")
	assert.Equal(t, []any{"78:1", "78:2", "78:3"}, col.Values)
	med, _ := tbl.Column("median")
	assert.Equal(t, []any{200.0, 250.0, 50.0}, med.Values)
	n, _ := tbl.Column("deals")
	assert.Equal(t, []any{int64(2), int64(1), int64(1)}, n.Values)

	c, err := p.buildGeometry(m, tbl)
	require.NoError(t, err)
	assert.Equal(t, []any{"78:1", "78:2"}, c.Values("cadnum"))
}

func TestBuild_MissingTable(t *testing.T) {
	p, _ := newTestPipeline(t)
	f, err := mapspec.Parse([]byte(dealsYAML))
	require.NoError(t, err)

	_, err = p.Build(context.Background(), &f.Maps[0])
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMerge(t *testing.T) {
	p, ws := newTestPipeline(t)
	writeFile(t, ws.TablePath("prices.csv"), "area_id,price\n1,100\n")
	writeFile(t, ws.GeometryPath("areas.geojson"), twoAreas)

	res, err := p.Merge(context.Background(), MergeOptions{
		Table:      "prices.csv",
		Geometry:   "areas.geojson",
		IDColumn:   "area_id",
		GeoJSONOut: "joined.geojson",
		TableOut:   "joined.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, []string{"area_id", "name", "price"}, res.Columns)
	assert.Equal(t, []string{ws.OutputPath("joined.geojson"), ws.OutputPath("joined.csv")}, res.Written)

	c, err := geo.Load(ws.OutputPath("joined.geojson"), "area_id")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.HasColumn("price"))
	assert.Nil(t, c.Records[1].Properties["price"])

	tbl, err := table.Load(context.Background(), ws.OutputPath("joined.csv"), table.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"area_id", "name", "price"}, tbl.Names())
}

func TestMerge_NeedsOutput(t *testing.T) {
	p, _ := newTestPipeline(t)
	_, err := p.Merge(context.Background(), MergeOptions{Table: "a.csv", Geometry: "b.geojson", IDColumn: "id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a geojson or table output")
}
