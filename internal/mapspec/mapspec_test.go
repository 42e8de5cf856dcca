package mapspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spbu-research/spbu-maps/internal/apperr"
)

const dealsYAML = `
defaults:
  tiles: OpenStreetMap
  palette: YlOrRd
  zoom: 13
maps:
  - name: deals_median
    title: "Deals: median price per sqm"
    table:
      path: deals_quarter_metrics.csv
      delimiter: ";"
      key: quarter_cad_number
      value: price_per_sqm
      positive_only: true
      dtypes: { quarter_cad_number: string }
      aggregate:
        - { func: median }
        - { func: count, as: deals }
    geometry:
      path: 78_filtered.geojson
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
        points: { path: bids.csv, lat: lat, lon: lon, value: price_per_sqm }
  - name: quarters
    table: { path: q.csv, key: id }
    geometry: { path: q.geojson, key: id }
    tiles: cartodbpositron
    output: quarters.png
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(dealsYAML), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Maps, 2)

	deals := f.Maps[0]
	assert.Equal(t, "deals_median.html", deals.Output)
	assert.Equal(t, "OpenStreetMap", deals.Tiles)
	assert.Equal(t, "YlOrRd", deals.Palette)
	assert.Equal(t, 13, deals.Zoom)
	assert.Equal(t, "left", deals.Join.How)
	assert.Equal(t, []string{"externalKey", "label", "options.cad_num"}, deals.Geometry.KeyFrom)
	require.Len(t, deals.Table.Aggregate, 2)
	assert.Equal(t, Metric{Func: "median", Column: "price_per_sqm", As: "median"}, deals.Table.Aggregate[0])
	assert.Equal(t, "deals", deals.Table.Aggregate[1].As)
	assert.Equal(t, "median", deals.ValueColumn())
	require.Len(t, deals.Layers, 3)
	assert.Equal(t, "bids.csv", deals.Layers[2].Points.Path)

	quarters, err := f.Find("quarters")
	require.NoError(t, err)
	assert.Equal(t, "cartodbpositron", quarters.Tiles, "own value wins over defaults")
	assert.Equal(t, "quarters", quarters.Title)
	require.Len(t, quarters.Layers, 1)
	assert.Equal(t, "borders", quarters.Layers[0].Kind, "no value column means outlines only")

	_, err = f.Find("rent")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLoad_DefaultChoropleth(t *testing.T) {
	f, err := Parse([]byte(`
maps:
  - name: prices
    legend: Price per sqm
    table: { path: p.csv, key: area_id, value: price }
    geometry: { path: a.geojson, key: area_id }
`))
	require.NoError(t, err)
	l := f.Maps[0].Layers
	require.Len(t, l, 1)
	assert.Equal(t, Layer{Name: "Price per sqm", Kind: "choropleth", Column: "price"}, l[0])
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestParse_Invalid(t *testing.T) {
	base := "    table: { path: p.csv, key: id, value: v }\n    geometry: { path: g.geojson, key: id }\n"
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad yaml", "maps: [", "parse yaml"},
		{"no maps", "maps: []", "no maps"},
		{"no name", "maps:\n  - table: { path: p.csv }\n", "without a name"},
		{"no table path", "maps:\n  - name: a\n    table: { key: id }\n    geometry: { path: g, key: id }\n", "table.path"},
		{"no geometry key", "maps:\n  - name: a\n    table: { path: p.csv, key: id }\n    geometry: { path: g }\n", "geometry.key"},
		{"duplicate", "maps:\n  - name: a\n" + base + "  - name: a\n" + base, "duplicate"},
		{"bad agg", "maps:\n  - name: a\n    table: { path: p.csv, key: id, value: v, aggregate: [{func: mode}] }\n    geometry: { path: g, key: id }\n", "unknown aggregation"},
		{"bad join", "maps:\n  - name: a\n" + base + "    join: { how: outer }\n", "join.how"},
		{"bad output", "maps:\n  - name: a\n" + base + "    output: a.pdf\n", "output"},
		{"bad layer", "maps:\n  - name: a\n" + base + "    layers: [{kind: heatmap}]\n", "unknown kind"},
		{"labels without column", "maps:\n  - name: a\n" + base + "    layers: [{kind: labels}]\n", "needs a column"},
		{"points on choropleth", "maps:\n  - name: a\n" + base + "    layers: [{kind: choropleth, column: v, points: {path: b.csv}}]\n", "points source"},
		{"bad dtype", "maps:\n  - name: a\n    table: { path: p.csv, key: id, dtypes: {id: complex} }\n    geometry: { path: g, key: id }\n", "unknown kind"},
		{"bad delimiter", "maps:\n  - name: a\n    table: { path: p.csv, key: id, delimiter: ';;' }\n    geometry: { path: g, key: id }\n", "delimiter"},
		{"zoom", "maps:\n  - name: a\n" + base + "    zoom: 30\n", "zoom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindParse))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
