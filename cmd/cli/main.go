package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/config"
	"github.com/pep299/econ-news-digest/internal/di"
	"github.com/pep299/econ-news-digest/internal/logging"
)

var (
	Version string = "dev"
	Commit  string = "unknown"
)

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	root := &cobra.Command{
		Use:           "econ-digest",
		Short:         "Economic news digest",
		SilenceUsage:  true,
	}
	root.AddCommand(runCMD(), fetchCMD(), versionCMD())
	return root
}

func versionCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Economic News Digest CLI\nVersion: %s\nCommit: %s\n", Version, Commit)
		},
	}
}

// buildContainer loads configuration and wires every component.
func buildContainer(ctx context.Context) (*di.Container, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return container, logger, nil
}
