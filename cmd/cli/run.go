package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pep299/econ-news-digest/internal/pipeline"
)

func runCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, summarize, render and deliver one report",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, logger, err := buildContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer container.Close()

			outcome := container.Runner.Run(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Run finished: %s\n", outcome)
			if outcome == pipeline.OutcomeFailed {
				return fmt.Errorf("report run failed")
			}
			return nil
		},
	}
}
