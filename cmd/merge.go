package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spbu-research/spbu-maps/internal/pipeline"
	"github.com/spbu-research/spbu-maps/internal/table"
)

var (
	mergeTable     string
	mergeGeometry  string
	mergeIDCol     string
	mergeHow       string
	mergeOutput    []string
	mergeDelimiter string
	mergeEncoding  string
	mergeSheet     string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Join a table to a geometry file and save the result",
	Long: "Left-joins a table onto a geometry file and writes the joined features to the outputs dir. " +
		".geojson outputs keep geometry; .csv, .tsv, .sqlite and .db outputs keep attributes only.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		delim, err := table.ParseDelimiter(mergeDelimiter)
		if err != nil {
			return err
		}
		opts := pipeline.MergeOptions{
			Table:    mergeTable,
			Geometry: mergeGeometry,
			IDColumn: mergeIDCol,
			How:      mergeHow,
			Load:     table.Options{Delimiter: delim, Encoding: mergeEncoding, Sheet: mergeSheet},
		}
		for _, out := range mergeOutput {
			switch strings.ToLower(filepath.Ext(out)) {
			case ".geojson", ".json":
				opts.GeoJSONOut = out
			default:
				opts.TableOut = out
			}
		}

		res, err := newPipeline().Merge(ctx, opts)
		if err != nil {
			return err
		}
		for _, path := range res.Written {
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d records to %s\n", res.Records, path)
		}
		return nil
	},
}

func init() {
	f := mergeCmd.Flags()
	f.StringVar(&mergeTable, "table", "", "table file in the data dir (required)")
	f.StringVar(&mergeGeometry, "geometry", "", "GeoJSON or shapefile in the geojsons dir (required)")
	f.StringVar(&mergeIDCol, "id-col", "", "join column present in both inputs (required)")
	f.StringVar(&mergeHow, "how", "left", "join kind: left or inner")
	f.StringSliceVar(&mergeOutput, "output", []string{"merged.geojson"}, "output files in the outputs dir")
	f.StringVar(&mergeDelimiter, "delimiter", "", "field delimiter; empty sniffs, \"tab\" for tabs")
	f.StringVar(&mergeEncoding, "encoding", "", "table encoding (default utf-8)")
	f.StringVar(&mergeSheet, "sheet", "", "xlsx sheet or sqlite table name")
	_ = mergeCmd.MarkFlagRequired("table")
	_ = mergeCmd.MarkFlagRequired("geometry")
	_ = mergeCmd.MarkFlagRequired("id-col")
	rootCmd.AddCommand(mergeCmd)
}
