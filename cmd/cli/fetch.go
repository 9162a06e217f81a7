package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func fetchCMD() *cobra.Command {
	var keywords []string
	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch articles and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, logger, err := buildContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer container.Close()

			if len(keywords) == 0 {
				keywords = container.Config.Keywords
			}
			articles := container.NewsClient.FetchAll(cmd.Context(), keywords)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(articles)
		},
	}
	fetch.Flags().StringSliceVarP(&keywords, "keyword", "k", nil, "keyword to search (repeatable, default from config)")
	return fetch
}
