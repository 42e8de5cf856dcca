package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/mapspec"
)

var (
	buildSpec string
	buildOnly []string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the maps described in a YAML definition file",
	Long:  "Reads map definitions (table, geometry, join key, aggregation and layers) and renders each one into the maps dir.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := mapspec.Load(buildSpec)
		if err != nil {
			return err
		}

		maps := make([]*mapspec.Map, 0, len(f.Maps))
		if len(buildOnly) == 0 {
			for i := range f.Maps {
				maps = append(maps, &f.Maps[i])
			}
		} else {
			for _, name := range buildOnly {
				m, err := f.Find(name)
				if err != nil {
					return err
				}
				maps = append(maps, m)
			}
		}

		p := newPipeline()
		for _, m := range maps {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "build: interrupted")
			}
			a, err := p.Build(ctx, m)
			if err != nil {
				return fmt.Errorf("build %s: %w", m.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", m.Name, a.Path)
		}

		zap.L().Info("build complete", zap.String("spec", buildSpec), zap.Int("maps", len(maps)))
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildSpec, "spec", "maps.yaml", "map definition file")
	buildCmd.Flags().StringSliceVar(&buildOnly, "only", nil, "build only these maps (comma-separated names)")
	rootCmd.AddCommand(buildCmd)
}
