package render

import (
	"slices"
	"strings"

	"github.com/spbu-research/spbu-maps/internal/apperr"
)

// TileProvider is a raster basemap.
type TileProvider struct {
	Name        string
	URL         string
	Attribution string
	MaxZoom     int
}

var tileProviders = map[string]TileProvider{
	"openstreetmap": {
		Name:        "OpenStreetMap",
		URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
		MaxZoom:     19,
	},
	"cartodbpositron": {
		Name:        "CartoDB positron",
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		MaxZoom:     20,
	},
	"cartodbdarkmatter": {
		Name:        "CartoDB dark_matter",
		URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		MaxZoom:     20,
	},
	"esriworldimagery": {
		Name:        "Esri WorldImagery",
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri &mdash; Source: Esri, i-cubed, USDA, USGS, AEX, GeoEye, Getmapping, Aerogrid, IGN, IGP, UPR-EGP, and the GIS User Community",
		MaxZoom:     18,
	},
}

// TileNames returns the built-in provider keys, sorted.
func TileNames() []string {
	names := make([]string, 0, len(tileProviders))
	for n := range tileProviders {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func tileKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}

// ResolveTiles looks up a provider by name, ignoring case, spaces and
// underscores ("CartoDB positron" == "cartodbpositron"). A URL template
// containing "{z}" is accepted as a custom provider.
func ResolveTiles(name string) (TileProvider, error) {
	if strings.Contains(name, "{z}") {
		return TileProvider{Name: "custom", URL: name, MaxZoom: 19}, nil
	}
	if p, ok := tileProviders[tileKey(name)]; ok {
		return p, nil
	}
	return TileProvider{}, apperr.Render(nil, "render: unknown tile provider %q (have %s)", name, strings.Join(TileNames(), ", "))
}
