package geo

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/table"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

// LoadShapefile reads a .shp file and its .dbf attributes. Attribute columns
// are typed with the table inference policy.
func LoadShapefile(path, idColumn string) (*Collection, error) {
	if _, err := workspace.RequirePath(path); err != nil {
		return nil, err
	}
	reader, err := shp.Open(path)
	if err != nil {
		return nil, apperr.Parse(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}
	names = table.CleanHeader(names)

	var geoms []geom.T
	cells := make([][]string, len(fields))
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		g := ShapeToGeom(shape)
		if g == nil && shape != nil {
			if _, isNull := shape.(*shp.Null); !isNull {
				skipped++
			}
		}
		geoms = append(geoms, g)
		for i := range fields {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			cells[i] = append(cells[i], strings.TrimSpace(val))
		}
	}
	if err := reader.Err(); err != nil {
		return nil, apperr.Parse(err, "geo: read shapefile %s", path)
	}

	c := &Collection{Columns: names, Records: make([]*Record, len(geoms))}
	for i, g := range geoms {
		c.Records[i] = &Record{Geometry: g, Properties: make(map[string]any, len(names))}
	}
	for j, name := range names {
		col := table.BuildColumn(name, cells[j], table.Options{})
		for i, v := range col.Values {
			c.Records[i].Properties[name] = v
		}
	}

	if idColumn != "" {
		if err := c.Require(idColumn); err != nil {
			return nil, err
		}
		c.IDColumn = idColumn
	}

	log := zap.L().With(zap.String("component", "geo"), zap.String("path", path))
	if skipped > 0 {
		log.Debug("skipped unsupported shapefile geometries", zap.Int("skipped", skipped))
	}
	log.Debug("shapefile loaded", zap.Int("features", c.Len()))
	return c, nil
}

// ShapeToGeom converts a go-shp shape. Polylines become MultiLineStrings and
// polygons become MultiPolygons. Unsupported or empty shapes return nil.
func ShapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		return geom.NewMultiPointFlat(geom.XY, pointsFlat(s.Points))
	case *shp.PolyLine:
		return polyLineToMultiLineString(s.Parts, s.Points)
	case *shp.PolyLineZ:
		return polyLineToMultiLineString(s.Parts, s.Points)
	case *shp.Polygon:
		return polygonToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return polygonToMultiPolygon(s.Parts, s.Points)
	}
	return nil
}

func partRange(parts []int32, i, n int) (int, int) {
	start := int(parts[i])
	end := n
	if i+1 < len(parts) {
		end = int(parts[i+1])
	}
	return start, end
}

func polyLineToMultiLineString(parts []int32, points []shp.Point) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := range parts {
		start, end := partRange(parts, i, len(points))
		if start >= end || end > len(points) {
			continue
		}
		ls := geom.NewLineStringFlat(geom.XY, pointsFlat(points[start:end]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("geo: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon groups rings into polygons: clockwise rings start a
// new polygon, counter-clockwise rings are holes of the preceding one.
func polygonToMultiPolygon(parts []int32, points []shp.Point) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	var polys []*geom.Polygon
	for i := range parts {
		start, end := partRange(parts, i, len(points))
		if end-start < 3 || end > len(points) {
			continue
		}
		flat := pointsFlat(points[start:end])
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) > 0 && len(polys) > 0 {
			if err := polys[len(polys)-1].Push(ring); err != nil {
				zap.L().Debug("geo: skipping malformed hole", zap.Int("part", i), zap.Error(err))
			}
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
			continue
		}
		polys = append(polys, poly)
	}

	if len(polys) == 0 {
		return nil
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for i, p := range polys {
		if err := mp.Push(p); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}
	return mp
}

// signedArea is positive for counter-clockwise rings.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := range n {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

func pointsFlat(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
