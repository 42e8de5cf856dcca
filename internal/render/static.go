package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

// Static image defaults.
const (
	DefaultStaticPalette = "viridis"
	DefaultStaticSize    = 800
	DefaultEdgeColor     = "#ffffff"
	DefaultShapeColor    = "#1f77b4"
)

const (
	staticPadding = 16
	legendHeight  = 14
	legendGap     = 10
	pointRadius   = 4
)

// StaticOptions configures a PNG render.
type StaticOptions struct {
	ValueColumn string
	Palette     string
	Bins        []float64
	Width       int
	Height      int
	EdgeColor   string
	Legend      bool // draw a colour bar under the map
}

func (o StaticOptions) withDefaults() StaticOptions {
	if o.Palette == "" {
		o.Palette = DefaultStaticPalette
	}
	if o.Width <= 0 {
		o.Width = DefaultStaticSize
	}
	if o.Height <= 0 {
		o.Height = DefaultStaticSize
	}
	if o.EdgeColor == "" {
		o.EdgeColor = DefaultEdgeColor
	}
	return o
}

// Static draws c as a PNG at path. Coordinates are treated as lon/lat and
// drawn in an equirectangular projection corrected for the mean latitude.
func Static(c *geo.Collection, opts StaticOptions, path string) (*Artifact, error) {
	img, elements, err := StaticImage(c, opts)
	if err != nil {
		return nil, err
	}
	err = workspace.WriteFileAtomic(path, func(w io.Writer) error {
		if err := png.Encode(w, img); err != nil {
			return eris.Wrap(err, "render: encode png")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	lat, lon, _ := c.Center()
	a := &Artifact{Path: path, Format: FormatPNG, Elements: elements, Layers: 1, CenterLat: lat, CenterLon: lon}
	zap.L().Info("map saved",
		zap.String("component", "render"),
		zap.String("path", path),
		zap.String("format", string(a.Format)),
		zap.Int("elements", a.Elements),
	)
	return a, nil
}

// StaticImage draws c in memory and returns the image and the number of
// drawn records.
func StaticImage(c *geo.Collection, opts StaticOptions) (*image.RGBA, int, error) {
	if c != nil && opts.ValueColumn != "" {
		if err := c.Require(opts.ValueColumn); err != nil {
			return nil, 0, apperr.Schema(err, "render: value column")
		}
	}
	if err := checkInput(c); err != nil {
		return nil, 0, err
	}
	opts = opts.withDefaults()

	var s *scale
	if opts.ValueColumn != "" {
		var err error
		if s, err = newScale(c, opts.ValueColumn, opts.Palette, opts.Bins); err != nil {
			return nil, 0, err
		}
	} else if _, err := ResolvePalette(opts.Palette); err != nil {
		return nil, 0, err
	}
	edge, err := parseColor(opts.EdgeColor)
	if err != nil {
		return nil, 0, err
	}
	plain, _ := parseColor(DefaultShapeColor)
	missing, _ := parseColor(MissingColor)

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	fillRect(img, img.Bounds(), color.RGBA{R: 255, G: 255, B: 255, A: 255})

	mapArea := image.Rect(staticPadding, staticPadding, opts.Width-staticPadding, opts.Height-staticPadding)
	if s != nil && opts.Legend {
		mapArea.Max.Y -= legendHeight + legendGap
	}
	b, _ := c.Bounds()
	proj := newProjection(b, mapArea)

	elements := 0
	for _, r := range c.Records {
		if r.Geometry == nil {
			continue
		}
		fill := plain
		if s != nil {
			fill = missing
			if hex, ok := s.fill(r.Properties); ok {
				fill, _ = parseColor(hex)
			}
		}
		drawGeometry(img, proj, r.Geometry, fill, edge)
		elements++
	}

	if s != nil && opts.Legend {
		bar := image.Rect(mapArea.Min.X, opts.Height-staticPadding-legendHeight, mapArea.Max.X, opts.Height-staticPadding)
		drawColorBar(img, bar, s.cm)
	}
	return img, elements, nil
}

func parseColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, apperr.Render(err, "render: bad colour %q", hex)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// projection maps lon/lat to pixel coordinates.
type projection struct {
	minX, maxY float64
	kx         float64
	scale      float64
	offX, offY float64
}

func newProjection(b *geom.Bounds, area image.Rectangle) projection {
	midLat := (b.Min(1) + b.Max(1)) / 2
	kx := math.Cos(midLat * math.Pi / 180)
	if kx < 0.01 {
		kx = 0.01
	}
	w := (b.Max(0) - b.Min(0)) * kx
	h := b.Max(1) - b.Min(1)
	aw, ah := float64(area.Dx()), float64(area.Dy())

	var scale float64
	switch {
	case w == 0 && h == 0:
		scale = 1
	case w == 0:
		scale = ah / h
	case h == 0:
		scale = aw / w
	default:
		scale = math.Min(aw/w, ah/h)
	}
	return projection{
		minX:  b.Min(0),
		maxY:  b.Max(1),
		kx:    kx,
		scale: scale,
		offX:  float64(area.Min.X) + (aw-w*scale)/2,
		offY:  float64(area.Min.Y) + (ah-h*scale)/2,
	}
}

func (p projection) point(x, y float64) (float64, float64) {
	return p.offX + (x-p.minX)*p.kx*p.scale, p.offY + (p.maxY-y)*p.scale
}

func (p projection) ring(flat []float64, stride int) [][2]float64 {
	out := make([][2]float64, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		px, py := p.point(flat[i], flat[i+1])
		out = append(out, [2]float64{px, py})
	}
	return out
}

func drawGeometry(img *image.RGBA, p projection, g geom.T, fill, edge color.RGBA) {
	switch t := g.(type) {
	case *geom.Point:
		drawPoint(img, p, t.FlatCoords(), fill, edge)
	case *geom.MultiPoint:
		flat, stride := t.FlatCoords(), t.Stride()
		for i := 0; i+1 < len(flat); i += stride {
			drawPoint(img, p, flat[i:i+2], fill, edge)
		}
	case *geom.LineString:
		drawPolyline(img, p.ring(t.FlatCoords(), t.Stride()), fill)
	case *geom.MultiLineString:
		for _, part := range split(t.FlatCoords(), 0, t.Ends()) {
			drawPolyline(img, p.ring(part, t.Stride()), fill)
		}
	case *geom.Polygon:
		drawPolygon(img, p, split(t.FlatCoords(), 0, t.Ends()), t.Stride(), fill, edge)
	case *geom.MultiPolygon:
		flat, start := t.FlatCoords(), 0
		for _, ends := range t.Endss() {
			drawPolygon(img, p, split(flat, start, ends), t.Stride(), fill, edge)
			if len(ends) > 0 {
				start = ends[len(ends)-1]
			}
		}
	case *geom.GeometryCollection:
		for _, child := range t.Geoms() {
			drawGeometry(img, p, child, fill, edge)
		}
	}
}

// split cuts flat coordinates into rings. ends are absolute offsets and the
// first ring begins at start.
func split(flat []float64, start int, ends []int) [][]float64 {
	out := make([][]float64, 0, len(ends))
	for _, end := range ends {
		if end > start {
			out = append(out, flat[start:end])
		}
		start = end
	}
	return out
}

func drawPoint(img *image.RGBA, p projection, xy []float64, fill, edge color.RGBA) {
	cx, cy := p.point(xy[0], xy[1])
	r := float64(pointRadius)
	for y := int(cy - r - 1); y <= int(cy+r+1); y++ {
		for x := int(cx - r - 1); x <= int(cx+r+1); x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			switch {
			case d <= r-1:
				setPixel(img, x, y, fill)
			case d <= r:
				setPixel(img, x, y, edge)
			}
		}
	}
}

func drawPolygon(img *image.RGBA, p projection, rings [][]float64, stride int, fill, edge color.RGBA) {
	projected := make([][][2]float64, len(rings))
	for i, ring := range rings {
		projected[i] = p.ring(ring, stride)
	}
	fillPolygon(img, projected, fill)
	for _, ring := range projected {
		drawPolyline(img, closeRing(ring), edge)
	}
}

func closeRing(ring [][2]float64) [][2]float64 {
	if len(ring) > 1 && ring[0] != ring[len(ring)-1] {
		return append(append([][2]float64(nil), ring...), ring[0])
	}
	return ring
}

// fillPolygon fills rings with the even-odd rule, so holes stay empty.
func fillPolygon(img *image.RGBA, rings [][][2]float64, c color.RGBA) {
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, ring := range rings {
		for _, pt := range ring {
			minY, maxY = math.Min(minY, pt[1]), math.Max(maxY, pt[1])
		}
	}
	if math.IsInf(minY, 1) {
		return
	}
	bounds := img.Bounds()
	y0 := max(bounds.Min.Y, int(math.Floor(minY)))
	y1 := min(bounds.Max.Y-1, int(math.Ceil(maxY)))

	var xs []float64
	for y := y0; y <= y1; y++ {
		sy := float64(y) + 0.5
		xs = xs[:0]
		for _, ring := range rings {
			n := len(ring)
			for i := 0; i < n; i++ {
				a, b := ring[i], ring[(i+1)%n]
				if (a[1] <= sy && b[1] > sy) || (b[1] <= sy && a[1] > sy) {
					xs = append(xs, a[0]+(sy-a[1])*(b[0]-a[0])/(b[1]-a[1]))
				}
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			from := int(math.Ceil(xs[i] - 0.5))
			to := int(math.Floor(xs[i+1] - 0.5))
			for x := from; x <= to; x++ {
				setPixel(img, x, y, c)
			}
		}
	}
}

// drawPolyline draws 1px segments with Bresenham's algorithm.
func drawPolyline(img *image.RGBA, pts [][2]float64, c color.RGBA) {
	for i := 0; i+1 < len(pts); i++ {
		x0, y0 := int(math.Round(pts[i][0])), int(math.Round(pts[i][1]))
		x1, y1 := int(math.Round(pts[i+1][0])), int(math.Round(pts[i+1][1]))
		dx, dy := abs(x1-x0), -abs(y1-y0)
		sx, sy := 1, 1
		if x0 > x1 {
			sx = -1
		}
		if y0 > y1 {
			sy = -1
		}
		e := dx + dy
		for {
			setPixel(img, x0, y0, c)
			if x0 == x1 && y0 == y1 {
				break
			}
			e2 := 2 * e
			if e2 >= dy {
				e += dy
				x0 += sx
			}
			if e2 <= dx {
				e += dx
				y0 += sy
			}
		}
	}
}

func drawColorBar(img *image.RGBA, bar image.Rectangle, cm *Colormap) {
	w := bar.Dx()
	for x := 0; x < w; x++ {
		t := 0.0
		if w > 1 {
			t = float64(x) / float64(w-1)
		}
		if len(cm.Bins) >= 2 {
			v := cm.Min + t*(cm.Max-cm.Min)
			t = cm.Position(v)
		}
		r, g, b := cm.At(t).RGB255()
		for y := bar.Min.Y; y < bar.Max.Y; y++ {
			setPixel(img, bar.Min.X+x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	frame := color.RGBA{R: 64, G: 64, B: 64, A: 255}
	drawPolyline(img, [][2]float64{
		{float64(bar.Min.X), float64(bar.Min.Y)},
		{float64(bar.Max.X - 1), float64(bar.Min.Y)},
		{float64(bar.Max.X - 1), float64(bar.Max.Y - 1)},
		{float64(bar.Min.X), float64(bar.Max.Y - 1)},
		{float64(bar.Min.X), float64(bar.Min.Y)},
	}, frame)
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
