package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spbu-research/spbu-maps/internal/pipeline"
	"github.com/spbu-research/spbu-maps/internal/render"
	"github.com/spbu-research/spbu-maps/internal/table"
)

var (
	qmTable          string
	qmGeometry       string
	qmIDCol          string
	qmValueCol       string
	qmTooltipCols    []string
	qmTooltipAliases []string
	qmLatCol         string
	qmLonCol         string
	qmOutput         string
	qmTitle          string
	qmTiles          string
	qmPalette        string
	qmZoomStart      int
	qmFormat         string
	qmDelimiter      string
	qmEncoding       string
	qmSheet          string
	qmSkipRows       int
	qmDecimalComma   bool
)

var quickMapCmd = &cobra.Command{
	Use:   "quick-map",
	Short: "Join a table to a geometry file and render it",
	Long: "Loads a table from the data dir and a GeoJSON or shapefile from the geojsons dir, " +
		"left-joins them on --id-col and writes an interactive HTML or static PNG map to the outputs dir. " +
		"Without --geometry the table's latitude/longitude columns are drawn as points.",
	Example: "  spbu-maps quick-map --table prices.csv --geometry districts.geojson --id-col area_id --value-col price",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		delim, err := table.ParseDelimiter(qmDelimiter)
		if err != nil {
			return err
		}

		a, err := newPipeline().QuickMap(ctx, pipeline.QuickOptions{
			Table:          qmTable,
			Geometry:       qmGeometry,
			IDColumn:       qmIDCol,
			ValueColumn:    qmValueCol,
			TooltipColumns: qmTooltipCols,
			TooltipAliases: qmTooltipAliases,
			LatColumn:      qmLatCol,
			LonColumn:      qmLonCol,
			Output:         qmOutput,
			Title:          qmTitle,
			Tiles:          qmTiles,
			Palette:        qmPalette,
			ZoomStart:      qmZoomStart,
			Format:         render.Format(qmFormat),
			Load: table.Options{
				Delimiter:    delim,
				Encoding:     qmEncoding,
				Sheet:        qmSheet,
				SkipRows:     qmSkipRows,
				DecimalComma: qmDecimalComma,
			},
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Map saved to %s\n", a.Path)
		return nil
	},
}

func init() {
	f := quickMapCmd.Flags()
	f.StringVar(&qmTable, "table", "", "table file in the data dir (required)")
	f.StringVar(&qmGeometry, "geometry", "", "GeoJSON or shapefile in the geojsons dir; empty draws lat/lon points")
	f.StringVar(&qmIDCol, "id-col", "", "join column present in both inputs")
	f.StringVar(&qmValueCol, "value-col", "", "numeric column to colour by")
	f.StringSliceVar(&qmTooltipCols, "tooltip-cols", nil, "columns shown on hover")
	f.StringSliceVar(&qmTooltipAliases, "tooltip-aliases", nil, "labels for --tooltip-cols")
	f.StringVar(&qmLatCol, "lat-col", "", "latitude column for point maps (auto-detected when empty)")
	f.StringVar(&qmLonCol, "lon-col", "", "longitude column for point maps (auto-detected when empty)")
	f.StringVar(&qmOutput, "output", pipeline.DefaultQuickMapOutput, "output file in the outputs dir (.html or .png)")
	f.StringVar(&qmTitle, "title", "", "page title")
	f.StringVar(&qmTiles, "tiles", "", "tile provider name or URL template (default from config)")
	f.StringVar(&qmPalette, "palette", "", "colour palette, _r reverses (default from config)")
	f.IntVar(&qmZoomStart, "zoom-start", 0, "initial zoom (default from config)")
	f.StringVar(&qmFormat, "format", "", "force html or png instead of the output suffix")
	f.StringVar(&qmDelimiter, "delimiter", "", "field delimiter; empty sniffs, \"tab\" for tabs")
	f.StringVar(&qmEncoding, "encoding", "", "table encoding, e.g. windows-1251 (default utf-8)")
	f.StringVar(&qmSheet, "sheet", "", "xlsx sheet or sqlite table name")
	f.IntVar(&qmSkipRows, "skip-rows", 0, "rows to skip before the header")
	f.BoolVar(&qmDecimalComma, "decimal-comma", false, "read 1,5 as 1.5")
	_ = quickMapCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(quickMapCmd)
}
