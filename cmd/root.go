package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/config"
	"github.com/spbu-research/spbu-maps/internal/pipeline"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "spbu-maps",
	Short:         "Research map tooling for tabular and geographic data",
	Long:          "Loads tables and boundary files from the project workspace, joins them on a shared key and renders interactive HTML or static PNG maps.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newPipeline builds a pipeline over the configured workspace.
func newPipeline() *pipeline.Pipeline {
	return pipeline.New(cfg, workspace.New(cfg.Paths))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(apperr.ExitCode(err))
	}
}
