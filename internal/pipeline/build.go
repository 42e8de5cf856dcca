package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/mapspec"
	"github.com/spbu-research/spbu-maps/internal/merge"
	"github.com/spbu-research/spbu-maps/internal/render"
	"github.com/spbu-research/spbu-maps/internal/table"
)

// Build renders one map definition into the maps dir.
func (p *Pipeline) Build(ctx context.Context, m *mapspec.Map) (*render.Artifact, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("map", m.Name))

	tbl, err := p.buildTable(ctx, m)
	if err != nil {
		return nil, err
	}
	log.Debug("table ready", zap.Int("rows", tbl.Len()), zap.Strings("columns", tbl.Names()))

	c, err := p.buildGeometry(m, tbl)
	if err != nil {
		return nil, err
	}
	log.Debug("geometry ready", zap.Int("records", c.Len()))

	mo := merge.Options{How: m.Join.How}
	if len(m.Join.Suffixes) == 2 {
		mo.Suffixes = [2]string{m.Join.Suffixes[0], m.Join.Suffixes[1]}
	}
	joined, err := merge.Join(c, tbl, m.Geometry.Key, mo)
	if err != nil {
		return nil, err
	}

	ropts := p.renderOptions()
	ropts.Title = m.Title
	ropts.Legend = m.Legend
	ropts.Bins = m.Bins
	ropts.ValueColumn = m.ValueColumn()
	if m.Tiles != "" {
		ropts.Tiles = m.Tiles
	}
	if m.Palette != "" {
		ropts.Palette = m.Palette
	}
	if m.Zoom != 0 {
		ropts.ZoomStart = m.Zoom
	}
	if m.FillOpacity != 0 {
		ropts.FillOpacity = m.FillOpacity
	}
	for _, l := range m.Layers {
		rl, err := p.buildLayer(ctx, l)
		if err != nil {
			return nil, err
		}
		ropts.Layers = append(ropts.Layers, rl)
	}
	if ropts.Legend == "" {
		ropts.Legend = ropts.ValueColumn
	}

	artifact, err := render.Render(joined, ropts, p.ws.MapPath(m.Output))
	if err != nil {
		return nil, err
	}
	log.Info("map built",
		zap.String("path", artifact.Path),
		zap.Int("records", joined.Len()),
		zap.Int("layers", artifact.Layers),
	)
	return artifact, nil
}

// buildTable loads the table and applies the value filter and aggregation.
func (p *Pipeline) buildTable(ctx context.Context, m *mapspec.Map) (*table.Table, error) {
	src := m.Table
	delim, err := table.ParseDelimiter(src.Delimiter)
	if err != nil {
		return nil, err
	}
	tbl, err := p.loadTable(ctx, src.Path, table.Options{
		Delimiter:    delim,
		Encoding:     src.Encoding,
		Sheet:        src.Sheet,
		SkipRows:     src.SkipRows,
		Dtypes:       pinnedKinds(src.Dtypes),
		DecimalComma: src.DecimalComma,
	})
	if err != nil {
		return nil, err
	}
	if src.PositiveOnly {
		if tbl, err = positiveOnly(tbl, src.Value); err != nil {
			return nil, err
		}
	}
	if len(src.Aggregate) > 0 {
		aggs := make([]table.Agg, len(src.Aggregate))
		for i, a := range src.Aggregate {
			aggs[i] = table.Agg{Column: a.Column, Func: a.Func, As: a.As}
		}
		if tbl, err = tbl.GroupBy(src.Key, aggs...); err != nil {
			return nil, err
		}
	}
	if src.Key != m.Geometry.Key {
		if tbl, err = tbl.Rename(src.Key, m.Geometry.Key); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// buildGeometry loads the geometry, derives its key and optionally keeps
// only records present in tbl.
func (p *Pipeline) buildGeometry(m *mapspec.Map, tbl *table.Table) (*geo.Collection, error) {
	g := m.Geometry
	idColumn := g.Key
	if len(g.KeyFrom) > 0 {
		idColumn = ""
	}
	c, err := p.loadGeometry(g.Path, idColumn)
	if err != nil {
		return nil, err
	}
	if len(g.KeyFrom) > 0 {
		c = c.DeriveKey(g.Key, g.KeyFrom...)
		c.IDColumn = g.Key
	}
	if g.FilterToTable {
		keyCol, ok := tbl.Column(g.Key)
		if !ok {
			return nil, tbl.Require(g.Key)
		}
		allowed := make(map[string]bool, len(keyCol.Values))
		for _, v := range keyCol.Values {
			if k, ok := table.KeyString(v); ok {
				allowed[k] = true
			}
		}
		before := c.Len()
		c = c.FilterKeys(g.Key, allowed)
		zap.L().Debug("geometry filtered to table keys",
			zap.String("component", "pipeline"),
			zap.Int("kept", c.Len()),
			zap.Int("dropped", before-c.Len()),
		)
	}
	return c, nil
}

func (p *Pipeline) buildLayer(ctx context.Context, l mapspec.Layer) (render.Layer, error) {
	rl := render.Layer{
		Name:    l.Name,
		Kind:    render.LayerKind(l.Kind),
		Column:  l.Column,
		Fields:  l.Fields,
		Aliases: l.Aliases,
		Color:   l.Color,
		Weight:  l.Weight,
		Hidden:  l.Hidden,
	}
	if l.Points == nil {
		return rl, nil
	}
	src, err := p.loadPoints(ctx, l.Points)
	if err != nil {
		return render.Layer{}, err
	}
	rl.Source = src
	return rl, nil
}

func (p *Pipeline) loadPoints(ctx context.Context, ps *mapspec.PointSource) (*geo.Collection, error) {
	delim, err := table.ParseDelimiter(ps.Delimiter)
	if err != nil {
		return nil, err
	}
	tbl, err := p.loadTable(ctx, ps.Path, table.Options{
		Delimiter:    delim,
		Encoding:     ps.Encoding,
		DecimalComma: ps.DecimalComma,
	})
	if err != nil {
		return nil, err
	}
	if ps.PositiveOnly && ps.Value != "" {
		if tbl, err = positiveOnly(tbl, ps.Value); err != nil {
			return nil, err
		}
	}
	return geo.PointsFromTable(tbl, ps.Lat, ps.Lon)
}
