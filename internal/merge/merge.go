// Package merge joins geometry collections with attribute tables.
package merge

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/table"
)

// Join kinds.
const (
	HowLeft  = "left"
	HowInner = "inner"
)

// DefaultSuffixes keeps left names as-is and marks colliding table columns.
var DefaultSuffixes = [2]string{"", "_other"}

// Options controls the join.
type Options struct {
	How      string    // "left" (default) or "inner"
	Suffixes [2]string // applied to colliding non-key columns; zero value = DefaultSuffixes
}

// LeftJoin joins t onto c by the shared column on. Every record of c is kept;
// records without a match get nil for every table column and records with
// several matches are repeated once per match, in table order. Keys compare by
// their canonical string form and missing keys never match. c and t are not
// modified.
func LeftJoin(c *geo.Collection, t *table.Table, on string, opts Options) (*geo.Collection, error) {
	if opts.How == "" {
		opts.How = HowLeft
	}
	return Join(c, t, on, opts)
}

// Join is LeftJoin with a selectable join kind.
func Join(c *geo.Collection, t *table.Table, on string, opts Options) (*geo.Collection, error) {
	if opts.How != HowLeft && opts.How != HowInner {
		return nil, eris.Errorf("merge: unsupported join kind %q", opts.How)
	}
	if opts.Suffixes == [2]string{} {
		opts.Suffixes = DefaultSuffixes
	}
	if err := c.Require(on); err != nil {
		return nil, apperr.Schema(err, "merge: geometry has no join column %q", on)
	}
	if err := t.Require(on); err != nil {
		return nil, apperr.Schema(err, "merge: table has no join column %q", on)
	}

	leftNames, rightNames, err := outputNames(c.Columns, t.Names(), on, opts.Suffixes)
	if err != nil {
		return nil, err
	}

	keyCol, _ := t.Column(on)
	index := make(map[string][]int, len(keyCol.Values))
	for r, v := range keyCol.Values {
		if k, ok := table.KeyString(v); ok {
			index[k] = append(index[k], r)
		}
	}

	out := &geo.Collection{IDColumn: on}
	for _, name := range c.Columns {
		out.Columns = append(out.Columns, leftNames[name])
	}
	for _, col := range t.Columns {
		if col.Name != on {
			out.Columns = append(out.Columns, rightNames[col.Name])
		}
	}

	matched, unmatched := 0, 0
	for _, rec := range c.Records {
		var rows []int
		if k, ok := table.KeyString(rec.Properties[on]); ok {
			rows = index[k]
		}
		if len(rows) == 0 {
			unmatched++
			if opts.How == HowInner {
				continue
			}
			props := leftProps(rec, c.Columns, leftNames)
			for _, col := range t.Columns {
				if col.Name != on {
					props[rightNames[col.Name]] = nil
				}
			}
			out.Records = append(out.Records, &geo.Record{Geometry: rec.Geometry, Properties: props})
			continue
		}
		matched++
		for _, r := range rows {
			props := leftProps(rec, c.Columns, leftNames)
			for _, col := range t.Columns {
				if col.Name != on {
					props[rightNames[col.Name]] = col.Values[r]
				}
			}
			out.Records = append(out.Records, &geo.Record{Geometry: rec.Geometry, Properties: props})
		}
	}

	zap.L().Debug("merge complete",
		zap.String("component", "merge"),
		zap.String("on", on),
		zap.String("how", opts.How),
		zap.Int("matched", matched),
		zap.Int("unmatched", unmatched),
		zap.Int("rows", out.Len()),
	)
	return out, nil
}

func leftProps(rec *geo.Record, columns []string, names map[string]string) map[string]any {
	props := make(map[string]any, len(columns))
	for _, col := range columns {
		props[names[col]] = rec.Properties[col]
	}
	return props
}

// outputNames applies suffixes to non-key columns present on both sides.
func outputNames(left, right []string, on string, suffixes [2]string) (map[string]string, map[string]string, error) {
	inRight := make(map[string]bool, len(right))
	for _, n := range right {
		inRight[n] = true
	}
	inLeft := make(map[string]bool, len(left))
	for _, n := range left {
		inLeft[n] = true
	}

	leftNames := make(map[string]string, len(left))
	for _, n := range left {
		if n != on && inRight[n] {
			leftNames[n] = n + suffixes[0]
		} else {
			leftNames[n] = n
		}
	}
	rightNames := make(map[string]string, len(right))
	for _, n := range right {
		if n != on && inLeft[n] {
			rightNames[n] = n + suffixes[1]
		} else {
			rightNames[n] = n
		}
	}

	seen := make(map[string]bool, len(left)+len(right))
	for _, n := range left {
		seen[leftNames[n]] = true
	}
	for _, n := range right {
		if n == on {
			continue
		}
		if seen[rightNames[n]] {
			return nil, nil, apperr.Schema(nil, "merge: column %q would appear twice; use distinct suffixes", rightNames[n])
		}
		seen[rightNames[n]] = true
	}
	return leftNames, rightNames, nil
}
