package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spbu-research/spbu-maps/internal/fetcher"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

var (
	fetchDest    string
	fetchExtract bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a raw input file into the raw data dir",
	Long:  "Downloads an HTTP(S) or FTP resource into the raw data dir. With --extract a ZIP archive is unpacked next to it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rawURL := args[0]
		timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
		f, err := fetcher.ForURL(rawURL, fetcher.Options{
			HTTP: fetcher.HTTPOptions{
				UserAgent:  cfg.Fetch.UserAgent,
				Timeout:    timeout,
				MaxRetries: cfg.Fetch.MaxRetries,
				RatePerSec: cfg.Fetch.RatePerSec,
			},
			FTP: fetcher.FTPOptions{Timeout: timeout},
		})
		if err != nil {
			return err
		}

		ws := workspace.New(cfg.Paths)
		dest := fetchDest
		if dest == "" {
			dest = fetcher.FileNameFromURL(rawURL, "download")
		}
		path := ws.RawPath(dest)

		n, err := f.DownloadToFile(ctx, rawURL, path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Downloaded %d bytes to %s\n", n, path)

		if !fetchExtract {
			return nil
		}
		files, err := fetcher.ExtractZIP(path, ws.RawDataDir)
		if err != nil {
			return err
		}
		zap.L().Info("archive extracted", zap.String("archive", path), zap.Int("files", len(files)))
		for _, p := range files {
			fmt.Fprintf(out, "  %s\n", p)
		}
		if g, err := fetcher.FindGeometry(files); err == nil {
			fmt.Fprintf(out, "Geometry: %s\n", g)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDest, "dest", "", "file name inside the raw data dir (default: from the URL)")
	fetchCmd.Flags().BoolVar(&fetchExtract, "extract", false, "unpack a ZIP archive after download")
	rootCmd.AddCommand(fetchCmd)
}
