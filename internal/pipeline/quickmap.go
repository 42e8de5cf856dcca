package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/merge"
	"github.com/spbu-research/spbu-maps/internal/render"
	"github.com/spbu-research/spbu-maps/internal/table"
)

// DefaultQuickMapOutput is written under the outputs dir when no output is given.
const DefaultQuickMapOutput = "quick_map.html"

// QuickOptions drives QuickMap. Table and Geometry are names inside the
// workspace or absolute paths.
type QuickOptions struct {
	Table          string
	Geometry       string // empty: build points from LatColumn/LonColumn
	IDColumn       string
	ValueColumn    string
	TooltipColumns []string
	TooltipAliases []string
	LatColumn      string
	LonColumn      string
	Output         string // relative to the outputs dir
	Title          string

	// Overrides of the configured render defaults; zero keeps the default.
	Tiles     string
	Palette   string
	ZoomStart int
	Format    render.Format

	Load table.Options
}

// QuickMap loads a table and a geometry file, left-joins them on IDColumn and
// renders the result. Without a geometry file the table's coordinate columns
// become points.
func (p *Pipeline) QuickMap(ctx context.Context, opts QuickOptions) (*render.Artifact, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("flow", "quick-map"))

	tbl, err := p.loadTable(ctx, opts.Table, opts.Load)
	if err != nil {
		return nil, err
	}
	log.Debug("table loaded", zap.String("table", opts.Table), zap.Int("rows", tbl.Len()))

	var joined *geo.Collection
	if opts.Geometry != "" {
		if opts.IDColumn == "" {
			return nil, eris.New("pipeline: an id column is required to join a geometry file")
		}
		c, err := p.loadGeometry(opts.Geometry, opts.IDColumn)
		if err != nil {
			return nil, err
		}
		if joined, err = merge.LeftJoin(c, tbl, opts.IDColumn, merge.Options{}); err != nil {
			return nil, err
		}
	} else {
		if joined, err = geo.PointsFromTable(tbl, opts.LatColumn, opts.LonColumn); err != nil {
			return nil, err
		}
	}

	ropts := p.renderOptions()
	ropts.ValueColumn = opts.ValueColumn
	ropts.TooltipColumns = opts.TooltipColumns
	ropts.TooltipAliases = opts.TooltipAliases
	ropts.Title = opts.Title
	ropts.Format = opts.Format
	if opts.Tiles != "" {
		ropts.Tiles = opts.Tiles
	}
	if opts.Palette != "" {
		ropts.Palette = opts.Palette
	}
	if opts.ZoomStart != 0 {
		ropts.ZoomStart = opts.ZoomStart
	}

	output := opts.Output
	if output == "" {
		output = DefaultQuickMapOutput
	}
	artifact, err := render.Render(joined, ropts, p.ws.OutputPath(output))
	if err != nil {
		return nil, err
	}
	log.Info("quick map complete",
		zap.String("path", artifact.Path),
		zap.Int("records", joined.Len()),
		zap.Int("elements", artifact.Elements),
	)
	return artifact, nil
}
