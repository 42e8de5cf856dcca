package geo

import (
	"strings"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/table"
)

// DetectLatLon finds latitude and longitude columns by name:
// lat|latitude|y and lon|lng|long|longitude|x, case-insensitive.
func DetectLatLon(names []string) (lat, lon string, ok bool) {
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "lat", "latitude", "y":
			if lat == "" {
				lat = n
			}
		case "lon", "lng", "long", "longitude", "x":
			if lon == "" {
				lon = n
			}
		}
	}
	return lat, lon, lat != "" && lon != ""
}

// PointsFromTable builds one point record per table row. Empty column names
// are auto-detected. Rows without parseable coordinates are skipped.
func PointsFromTable(t *table.Table, latCol, lonCol string) (*Collection, error) {
	if latCol == "" || lonCol == "" {
		lat, lon, _ := DetectLatLon(t.Names())
		if latCol == "" {
			latCol = lat
		}
		if lonCol == "" {
			lonCol = lon
		}
		if latCol == "" || lonCol == "" {
			return nil, apperr.Schema(nil, "geo: latitude/longitude columns not found")
		}
	}
	if err := t.Require(latCol, lonCol); err != nil {
		return nil, err
	}

	c := &Collection{Columns: t.Names()}
	skipped := 0
	for r := range t.Len() {
		lat, okLat := table.ToFloat(t.Value(r, latCol))
		lon, okLon := table.ToFloat(t.Value(r, lonCol))
		if !okLat || !okLon || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			skipped++
			continue
		}
		c.Records = append(c.Records, &Record{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{lon, lat}),
			Properties: t.Row(r),
		})
	}
	if skipped > 0 {
		zap.L().Debug("skipped rows without coordinates",
			zap.String("component", "geo"),
			zap.Int("skipped", skipped),
		)
	}
	return c, nil
}
