// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hubdl/internal/progress"
)

func newResumeCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume every incomplete download recorded in the registry",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(ro)
			if err != nil {
				return err
			}

			pending := client.IncompleteDownloads()
			if len(pending) == 0 {
				if !ro.Quiet {
					fmt.Println("nothing to resume")
				}
				return nil
			}

			renderer := progress.NewRenderer(ro.Quiet)
			err = client.ResumeAll(ctx, renderer.Handler())
			renderer.Finish()
			return err
		},
	}
}
