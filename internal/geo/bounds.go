package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Bounds returns the bounding box of every geometry. ok is false when the
// collection has no coordinates at all.
func (c *Collection) Bounds() (*geom.Bounds, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	found := false
	for _, r := range c.Records {
		walk(r.Geometry, func(flat []float64, stride int) {
			for i := 0; i+1 < len(flat); i += stride {
				minX, maxX = math.Min(minX, flat[i]), math.Max(maxX, flat[i])
				minY, maxY = math.Min(minY, flat[i+1]), math.Max(maxY, flat[i+1])
				found = true
			}
		})
	}
	if !found {
		return nil, false
	}
	return geom.NewBounds(geom.XY).Set(minX, minY, maxX, maxY), true
}

// Center returns the centre of the bounding box as (lat, lon).
func (c *Collection) Center() (lat, lon float64, ok bool) {
	b, ok := c.Bounds()
	if !ok {
		return 0, 0, false
	}
	return (b.Min(1) + b.Max(1)) / 2, (b.Min(0) + b.Max(0)) / 2, true
}

// Centroid returns the mean of every vertex of g as (x, y). This is the
// label anchor, not the area-weighted centroid.
func Centroid(g geom.T) (x, y float64, ok bool) {
	var sumX, sumY float64
	var n int
	walk(g, func(flat []float64, stride int) {
		for i := 0; i+1 < len(flat); i += stride {
			sumX += flat[i]
			sumY += flat[i+1]
			n++
		}
	})
	if n == 0 {
		return 0, 0, false
	}
	return sumX / float64(n), sumY / float64(n), true
}

// walk calls fn with the flat coordinates of every leaf geometry in g.
func walk(g geom.T, fn func(flat []float64, stride int)) {
	switch t := g.(type) {
	case nil:
		return
	case *geom.GeometryCollection:
		for _, child := range t.Geoms() {
			walk(child, fn)
		}
	default:
		if flat := t.FlatCoords(); len(flat) > 0 {
			fn(flat, t.Stride())
		}
	}
}
