package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spbu-research/spbu-maps/internal/workspace"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tables and geometry files in the workspace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ws := workspace.New(cfg.Paths)

		tables, err := ws.ListTables()
		if err != nil {
			return err
		}
		geoms, err := ws.ListGeometries()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printSection(out, "Tables", ws.DataDir, tables)
		fmt.Fprintln(out)
		printSection(out, "Geometries", ws.GeoJSONDir, geoms)
		return nil
	},
}

func printSection(w io.Writer, title, dir string, names []string) {
	fmt.Fprintln(w, titleStyle.Render(title)+" "+dimStyle.Render(dir))
	if len(names) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  (none)"))
		return
	}
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", n)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
