// Package pipeline strings the loaders, the merger and the renderer together
// into the flows the CLI exposes.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/config"
	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/render"
	"github.com/spbu-research/spbu-maps/internal/table"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

// Pipeline runs map flows over one workspace.
type Pipeline struct {
	cfg *config.Config
	ws  *workspace.Workspace
}

// New creates a Pipeline. cfg supplies rendering defaults.
func New(cfg *config.Config, ws *workspace.Workspace) *Pipeline {
	return &Pipeline{cfg: cfg, ws: ws}
}

// Workspace returns the workspace the pipeline reads from and writes to.
func (p *Pipeline) Workspace() *workspace.Workspace {
	return p.ws
}

// loadTable resolves name against the data dir and loads it.
func (p *Pipeline) loadTable(ctx context.Context, name string, opts table.Options) (*table.Table, error) {
	path, err := workspace.RequirePath(p.ws.TablePath(name))
	if err != nil {
		return nil, err
	}
	return table.Load(ctx, path, opts)
}

// loadGeometry resolves name against the geojson dir and loads it.
func (p *Pipeline) loadGeometry(name, idColumn string) (*geo.Collection, error) {
	path, err := workspace.RequirePath(p.ws.GeometryPath(name))
	if err != nil {
		return nil, err
	}
	return geo.Load(path, idColumn)
}

// renderOptions starts from the configured render defaults.
func (p *Pipeline) renderOptions() render.Options {
	rc := p.cfg.Render
	return render.Options{
		Tiles:       rc.Tiles,
		Palette:     rc.Palette,
		ZoomStart:   rc.ZoomStart,
		FillOpacity: rc.FillOpacity,
		LineOpacity: rc.LineOpacity,
		LineWeight:  rc.LineWeight,
		Width:       rc.Width,
		Height:      rc.Height,
	}
}

// positiveOnly keeps rows whose column parses as a number above zero. The
// column is coerced to float.
func positiveOnly(t *table.Table, column string) (*table.Table, error) {
	t, err := t.Coerce(column, table.KindFloat)
	if err != nil {
		return nil, err
	}
	col, _ := t.Column(column)
	out := t.Filter(func(row int) bool {
		f, ok := table.ToFloat(col.Values[row])
		return ok && f > 0
	})
	zap.L().Debug("filtered non-positive values",
		zap.String("component", "pipeline"),
		zap.String("column", column),
		zap.Int("kept", out.Len()),
		zap.Int("dropped", t.Len()-out.Len()),
	)
	return out, nil
}

func pinnedKinds(dtypes map[string]string) map[string]table.Kind {
	if len(dtypes) == 0 {
		return nil
	}
	out := make(map[string]table.Kind, len(dtypes))
	for col, name := range dtypes {
		if k, ok := table.ParseKind(name); ok {
			out[col] = k
		}
	}
	return out
}
