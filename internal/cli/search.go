// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hubdl/internal/hubapi"
	"hubdl/pkg/hubdl"
)

func newSearchCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var sortBy string
	var minDownloads, minLikes uint64

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the model hub",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(ro)
			if err != nil {
				return err
			}

			field := hubapi.SortDownloads
			switch sortBy {
			case "likes":
				field = hubapi.SortLikes
			case "modified":
				field = hubapi.SortLastModified
			case "name":
				field = hubapi.SortName
			}

			results, err := client.Search(ctx, args[0], hubdl.SearchOptions{
				SortField:    field,
				Direction:    hubapi.DirDesc,
				MinDownloads: minDownloads,
				MinLikes:     minLikes,
			})
			if err != nil {
				return err
			}

			if ro.JSONOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, r := range results {
				fmt.Printf("%-50s downloads=%-10d likes=%-6d gated=%s\n", r.ID, r.Downloads, r.Likes, r.Gated)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "downloads", "Sort field: downloads|likes|modified|name")
	cmd.Flags().Uint64Var(&minDownloads, "min-downloads", 0, "Minimum download count")
	cmd.Flags().Uint64Var(&minLikes, "min-likes", 0, "Minimum like count")

	return cmd
}
