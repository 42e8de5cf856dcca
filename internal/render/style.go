package render

import (
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/table"
)

// featureStyle is a Leaflet path style.
type featureStyle struct {
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
}

// scale colours one value column.
type scale struct {
	column string
	cm     *Colormap
}

// numeric returns v as a finite float.
func numeric(v any) (float64, bool) {
	f, ok := table.ToFloat(v)
	if !ok || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func newScale(c *geo.Collection, column, palette string, bins []float64) (*scale, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range c.Records {
		if f, ok := numeric(r.Properties[column]); ok {
			lo, hi = math.Min(lo, f), math.Max(hi, f)
		}
	}
	if math.IsInf(lo, 1) {
		return nil, apperr.Render(nil, "render: column %q has no numeric values to colour by", column)
	}
	cm, err := NewColormap(palette, lo, hi)
	if err != nil {
		return nil, err
	}
	if len(bins) > 0 {
		if cm, err = cm.WithBins(bins); err != nil {
			return nil, err
		}
	}
	return &scale{column: column, cm: cm}, nil
}

// fill returns the colour for a record, or false when its value is missing.
func (s *scale) fill(props map[string]any) (string, bool) {
	f, ok := numeric(props[s.column])
	if !ok {
		return "", false
	}
	return s.cm.Hex(f), true
}

// tooltipHTML renders the fields of one record as an escaped HTML table.
func tooltipHTML(props map[string]any, fields, aliases []string) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<table>")
	for i, f := range fields {
		label := f
		if i < len(aliases) && aliases[i] != "" {
			label = aliases[i]
		}
		b.WriteString("<tr><th>")
		b.WriteString(html.EscapeString(label))
		b.WriteString("</th><td>")
		b.WriteString(html.EscapeString(displayValue(props[f])))
		b.WriteString("</td></tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

// displayValue formats a property for people: rounded floats, dates
// without a zero clock.
func displayValue(v any) string {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return formatNumber(x)
	case time.Time:
		return table.FormatValue(x)
	}
	return table.FormatValue(v)
}

func formatNumber(v float64) string {
	if math.Abs(v) >= 1000 {
		return strconv.FormatFloat(math.Round(v), 'f', -1, 64)
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// jsonSafe drops values encoding/json cannot represent.
func jsonSafe(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case time.Time:
		return table.FormatValue(x)
	case []byte:
		return string(x)
	}
	return v
}
