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
)

func newListCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var revision string

	cmd := &cobra.Command{
		Use:   "list <model_id>",
		Short: "List files available in a model repository",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(ro)
			if err != nil {
				return err
			}

			meta, err := client.Files(ctx, args[0], revision)
			if err != nil {
				return err
			}

			if ro.JSONOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(meta)
			}

			for _, f := range meta.Siblings {
				size := "?"
				if f.Size != nil {
					size = fmt.Sprintf("%d", *f.Size)
				}
				fmt.Printf("%-60s %s\n", f.RFilename, size)
			}
			if groups := hubapi.GroupQuantizations(meta); len(groups) > 0 {
				fmt.Println("\nQuantizations:")
				for _, q := range groups {
					fmt.Printf("  %-12s %d file(s), %d bytes\n", q.QuantType, len(q.Files), q.TotalSize)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&revision, "revision", "b", "main", "Revision/branch to inspect")
	return cmd
}
