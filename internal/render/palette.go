package render

import (
	"math"
	"slices"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/spbu-research/spbu-maps/internal/apperr"
)

// palettes holds the 9-class sequential ColorBrewer schemes plus viridis.
var palettes = map[string][]string{
	"ylgnbu":  {"#ffffd9", "#edf8b1", "#c7e9b4", "#7fcdbb", "#41b6c4", "#1d91c0", "#225ea8", "#253494", "#081d58"},
	"ylorrd":  {"#ffffcc", "#ffeda0", "#fed976", "#feb24c", "#fd8d3c", "#fc4e2a", "#e31a1c", "#bd0026", "#800026"},
	"ylorbr":  {"#ffffe5", "#fff7bc", "#fee391", "#fec44f", "#fe9929", "#ec7014", "#cc4c02", "#993404", "#662506"},
	"orrd":    {"#fff7ec", "#fee8c8", "#fdd49e", "#fdbb84", "#fc8d59", "#ef6548", "#d7301f", "#b30000", "#7f0000"},
	"blues":   {"#f7fbff", "#deebf7", "#c6dbef", "#9ecae1", "#6baed6", "#4292c6", "#2171b5", "#08519c", "#08306b"},
	"greens":  {"#f7fcf5", "#e5f5e0", "#c7e9c0", "#a1d99b", "#74c476", "#41ab5d", "#238b45", "#006d2c", "#00441b"},
	"reds":    {"#fff5f0", "#fee0d2", "#fcbba1", "#fc9272", "#fb6a4a", "#ef3b2c", "#cb181d", "#a50f15", "#67000d"},
	"pubu":    {"#fff7fb", "#ece7f2", "#d0d1e6", "#a6bddb", "#74a9cf", "#3690c0", "#0570b0", "#045a8d", "#023858"},
	"viridis": {"#440154", "#472d7b", "#3b528b", "#2c728e", "#21918c", "#28ae80", "#5ec962", "#addc30", "#fde725"},
}

// PaletteNames returns the supported palette names, sorted.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for n := range palettes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ResolvePalette returns the colour stops of a named palette. Names are
// case-insensitive and a "_r" suffix reverses the stops.
func ResolvePalette(name string) ([]colorful.Color, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	reverse := strings.HasSuffix(key, "_r")
	key = strings.TrimSuffix(key, "_r")

	hexes, ok := palettes[key]
	if !ok {
		return nil, apperr.Render(nil, "render: unknown palette %q (have %s)", name, strings.Join(PaletteNames(), ", "))
	}
	stops := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, apperr.Render(err, "render: palette %s", name)
		}
		stops[i] = c
	}
	if reverse {
		slices.Reverse(stops)
	}
	return stops, nil
}

// Colormap maps numbers in [Min, Max] onto a palette. With Bins set, values
// are classified into len(Bins)-1 steps and every step gets one colour.
type Colormap struct {
	Stops []colorful.Color
	Min   float64
	Max   float64
	Bins  []float64
}

// NewColormap builds a linear colormap over [min, max].
func NewColormap(palette string, min, max float64) (*Colormap, error) {
	stops, err := ResolvePalette(palette)
	if err != nil {
		return nil, err
	}
	return &Colormap{Stops: stops, Min: min, Max: max}, nil
}

// WithBins switches the colormap to stepped colours. bins must be ascending
// and hold at least two edges.
func (cm *Colormap) WithBins(bins []float64) (*Colormap, error) {
	if len(bins) < 2 {
		return nil, apperr.Render(nil, "render: need at least two bin edges, got %d", len(bins))
	}
	if !slices.IsSorted(bins) {
		return nil, apperr.Render(nil, "render: bin edges must be ascending")
	}
	out := *cm
	out.Bins = append([]float64(nil), bins...)
	out.Min, out.Max = bins[0], bins[len(bins)-1]
	return &out, nil
}

// At returns the colour at position t in [0, 1], blending neighbouring stops
// in Lab space.
func (cm *Colormap) At(t float64) colorful.Color {
	t = math.Max(0, math.Min(1, t))
	if len(cm.Stops) == 1 {
		return cm.Stops[0]
	}
	pos := t * float64(len(cm.Stops)-1)
	i := int(pos)
	if i >= len(cm.Stops)-1 {
		return cm.Stops[len(cm.Stops)-1]
	}
	frac := pos - float64(i)
	if frac == 0 {
		return cm.Stops[i]
	}
	return cm.Stops[i].BlendLab(cm.Stops[i+1], frac).Clamped()
}

// Position returns where v falls on the colour scale, in [0, 1].
func (cm *Colormap) Position(v float64) float64 {
	if len(cm.Bins) >= 2 {
		steps := len(cm.Bins) - 1
		idx, _ := slices.BinarySearch(cm.Bins, v)
		// v on an edge belongs to the step that starts there.
		if idx < len(cm.Bins) && cm.Bins[idx] == v {
			idx++
		}
		step := max(0, min(steps-1, idx-1))
		if steps == 1 {
			return 0.5
		}
		return float64(step) / float64(steps-1)
	}
	if cm.Max <= cm.Min {
		return 0.5
	}
	return (v - cm.Min) / (cm.Max - cm.Min)
}

// Color returns the colour for v.
func (cm *Colormap) Color(v float64) colorful.Color {
	return cm.At(cm.Position(v))
}

// Hex returns the colour for v as #rrggbb.
func (cm *Colormap) Hex(v float64) string {
	return cm.Color(v).Hex()
}

// Gradient samples n evenly spaced colours, for legends.
func (cm *Colormap) Gradient(n int) []string {
	if n < 2 {
		n = 2
	}
	out := make([]string, n)
	for i := range out {
		out[i] = cm.At(float64(i) / float64(n-1)).Hex()
	}
	return out
}
