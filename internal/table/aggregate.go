package table

import (
	"math"
	"sort"
	"strings"

	"github.com/spbu-research/spbu-maps/internal/apperr"
)

// Agg names one aggregation for GroupBy.
type Agg struct {
	Column string // source column
	Func   string // median, count, mean, min, max or sum
	As     string // output column; "" = Func
}

var aggFuncs = map[string]func([]float64) any{
	"median": median,
	"mean": func(xs []float64) any {
		if len(xs) == 0 {
			return nil
		}
		sum := 0.0
		for _, x := range xs {
			sum += x
		}
		return sum / float64(len(xs))
	},
	"min": func(xs []float64) any {
		if len(xs) == 0 {
			return nil
		}
		m := math.Inf(1)
		for _, x := range xs {
			m = math.Min(m, x)
		}
		return m
	},
	"max": func(xs []float64) any {
		if len(xs) == 0 {
			return nil
		}
		m := math.Inf(-1)
		for _, x := range xs {
			m = math.Max(m, x)
		}
		return m
	},
	"sum": func(xs []float64) any {
		sum := 0.0
		for _, x := range xs {
			sum += x
		}
		return sum
	},
}

// IsAggFunc reports whether name is a supported aggregation.
func IsAggFunc(name string) bool {
	_, ok := aggFuncs[strings.ToLower(name)]
	return ok || strings.EqualFold(name, "count")
}

// GroupBy groups rows by the canonical key of the key column and applies
// aggs to each group. Rows with a missing key are dropped. The result has the
// key column (as strings) followed by one column per Agg, sorted by key.
func (t *Table) GroupBy(key string, aggs ...Agg) (*Table, error) {
	if err := t.Require(key); err != nil {
		return nil, err
	}
	for _, a := range aggs {
		if err := t.Require(a.Column); err != nil {
			return nil, err
		}
		if _, ok := aggFuncs[strings.ToLower(a.Func)]; !ok && !strings.EqualFold(a.Func, "count") {
			return nil, apperr.Schema(nil, "table: unknown aggregation %q", a.Func)
		}
	}

	keyCol, _ := t.Column(key)
	groups := make(map[string][]int)
	for r, v := range keyCol.Values {
		k, ok := KeyString(v)
		if !ok {
			continue
		}
		groups[k] = append(groups[k], r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyVals := make([]any, len(keys))
	for i, k := range keys {
		keyVals[i] = k
	}
	cols := []*Column{{Name: key, Kind: KindString, Values: keyVals}}

	for _, a := range aggs {
		src, _ := t.Column(a.Column)
		fn := strings.ToLower(a.Func)
		name := a.As
		if name == "" {
			name = fn
		}

		out := &Column{Name: name, Kind: KindFloat, Values: make([]any, len(keys))}
		if fn == "count" {
			out.Kind = KindInt
		}
		for i, k := range keys {
			if fn == "count" {
				n := int64(0)
				for _, r := range groups[k] {
					if src.Values[r] != nil {
						n++
					}
				}
				out.Values[i] = n
				continue
			}
			xs := make([]float64, 0, len(groups[k]))
			for _, r := range groups[k] {
				if f, ok := ToFloat(src.Values[r]); ok {
					xs = append(xs, f)
				}
			}
			out.Values[i] = aggFuncs[fn](xs)
		}
		cols = append(cols, out)
	}
	return New(cols...)
}

func median(xs []float64) any {
	if len(xs) == 0 {
		return nil
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
