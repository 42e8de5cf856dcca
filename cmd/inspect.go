package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spbu-research/spbu-maps/internal/geo"
	"github.com/spbu-research/spbu-maps/internal/table"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

var (
	inspectHead      int
	inspectDelimiter string
	inspectEncoding  string
	inspectSheet     string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <table|geometry>",
	Short: "Show columns, inferred kinds and non-missing counts",
	Long:  "Loads a table from the data dir, or a geometry file's attributes from the geojsons dir, and prints its schema.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ws := workspace.New(cfg.Paths)
		name := args[0]

		var (
			t   *table.Table
			err error
		)
		if workspace.GeometrySuffixes[strings.ToLower(filepath.Ext(name))] {
			t, err = loadGeometryAttributes(ws, name)
		} else {
			t, err = loadInspectTable(ctx, ws, name)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		summary := fmt.Sprintf("%d rows, %d columns", t.Len(), len(t.Names()))
		fmt.Fprintln(out, titleStyle.Render(name)+" "+dimStyle.Render(summary))
		fmt.Fprintln(out, schemaTable(t))
		if inspectHead > 0 && t.Len() > 0 {
			fmt.Fprintln(out, previewTable(t.Head(inspectHead)))
		}
		return nil
	},
}

func loadInspectTable(ctx context.Context, ws *workspace.Workspace, name string) (*table.Table, error) {
	delim, err := table.ParseDelimiter(inspectDelimiter)
	if err != nil {
		return nil, err
	}
	path, err := workspace.RequirePath(ws.TablePath(name))
	if err != nil {
		return nil, err
	}
	return table.Load(ctx, path, table.Options{Delimiter: delim, Encoding: inspectEncoding, Sheet: inspectSheet})
}

func loadGeometryAttributes(ws *workspace.Workspace, name string) (*table.Table, error) {
	path, err := workspace.RequirePath(ws.GeometryPath(name))
	if err != nil {
		return nil, err
	}
	c, err := geo.Load(path, "")
	if err != nil {
		return nil, err
	}
	return c.AttributeTable()
}

// schemaTable lists every column with its kind, non-missing count and
// first non-missing value.
func schemaTable(t *table.Table) string {
	rows := make([][]string, 0, len(t.Names()))
	for _, name := range t.Names() {
		col, _ := t.Column(name)
		sample := ""
		for _, v := range col.Values {
			if v != nil {
				sample = truncate(table.FormatValue(v), 32)
				break
			}
		}
		rows = append(rows, []string{
			name,
			string(col.Kind),
			strconv.Itoa(col.NonMissing()) + "/" + strconv.Itoa(t.Len()),
			sample,
		})
	}
	return renderTable([]string{"column", "kind", "non-missing", "sample"}, rows)
}

func previewTable(t *table.Table) string {
	rows := make([][]string, t.Len())
	for r := range t.Len() {
		row := make([]string, 0, len(t.Names()))
		for _, name := range t.Names() {
			row = append(row, truncate(table.FormatValue(t.Value(r, name)), 24))
		}
		rows[r] = row
	}
	return renderTable(t.Names(), rows)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	f := inspectCmd.Flags()
	f.IntVar(&inspectHead, "head", 5, "preview this many rows; 0 disables the preview")
	f.StringVar(&inspectDelimiter, "delimiter", "", "field delimiter; empty sniffs, \"tab\" for tabs")
	f.StringVar(&inspectEncoding, "encoding", "", "table encoding (default utf-8)")
	f.StringVar(&inspectSheet, "sheet", "", "xlsx sheet or sqlite table name")
	rootCmd.AddCommand(inspectCmd)
}
