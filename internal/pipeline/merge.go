package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/merge"
	"github.com/spbu-research/spbu-maps/internal/table"
)

// MergeOptions drives Merge. Outputs are relative to the outputs dir.
type MergeOptions struct {
	Table      string
	Geometry   string
	IDColumn   string
	How        string // "left" (default) or "inner"
	Load       table.Options
	GeoJSONOut string // joined features as GeoJSON
	TableOut   string // joined attributes only: .csv, .tsv, .sqlite or .db
}

// MergeResult reports what Merge wrote.
type MergeResult struct {
	Records int
	Columns []string
	Written []string
}

// Merge joins a table onto a geometry file and saves the result without
// rendering it.
func (p *Pipeline) Merge(ctx context.Context, opts MergeOptions) (*MergeResult, error) {
	if opts.GeoJSONOut == "" && opts.TableOut == "" {
		return nil, eris.New("pipeline: merge needs a geojson or table output")
	}
	if opts.IDColumn == "" {
		return nil, eris.New("pipeline: an id column is required to join a geometry file")
	}

	tbl, err := p.loadTable(ctx, opts.Table, opts.Load)
	if err != nil {
		return nil, err
	}
	c, err := p.loadGeometry(opts.Geometry, opts.IDColumn)
	if err != nil {
		return nil, err
	}
	joined, err := merge.LeftJoin(c, tbl, opts.IDColumn, merge.Options{How: opts.How})
	if err != nil {
		return nil, err
	}

	res := &MergeResult{Records: joined.Len(), Columns: joined.Columns}
	if opts.GeoJSONOut != "" {
		path := p.ws.OutputPath(opts.GeoJSONOut)
		if err := geo.Save(joined, path); err != nil {
			return nil, err
		}
		res.Written = append(res.Written, path)
	}
	if opts.TableOut != "" {
		attrs, err := joined.AttributeTable()
		if err != nil {
			return nil, err
		}
		path := p.ws.OutputPath(opts.TableOut)
		if err := table.Save(ctx, attrs, path, table.SaveOptions{}); err != nil {
			return nil, err
		}
		res.Written = append(res.Written, path)
	}

	zap.L().Info("merge complete",
		zap.String("component", "pipeline"),
		zap.Int("records", res.Records),
		zap.Strings("written", res.Written),
	)
	return res, nil
}
