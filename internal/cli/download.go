// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hubdl/internal/hubapi"
	"hubdl/internal/progress"
	"hubdl/pkg/hubdl"
)

func newDownloadCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var quantization string
	var all bool
	var revision string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "download <model_id>",
		Short: "Download one or more files from a model repository",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID := args[0]
			client, err := newClient(ro)
			if err != nil {
				return err
			}

			meta, err := client.Files(ctx, modelID, revision)
			if err != nil {
				return err
			}

			files := selectFiles(meta, quantization, all)
			if len(files) == 0 {
				return fmt.Errorf("no files matched (quantization=%q all=%v); use 'hubdl list %s' to see available files", quantization, all, modelID)
			}

			if dryRun {
				for _, f := range files {
					fmt.Println(f.RFilename)
				}
				return nil
			}

			renderer := progress.NewRenderer(ro.Quiet)
			for _, f := range files {
				renderer.Status("start", f.RFilename)
				var expectedSHA string
				if f.LFSSHA256 != nil {
					expectedSHA = *f.LFSSHA256
				}
				var sizeHint uint64
				if f.Size != nil {
					sizeHint = *f.Size
				}
				err := client.DownloadFile(ctx, hubdl.DownloadRequest{
					ModelID:        modelID,
					Filename:       f.RFilename,
					Revision:       revision,
					ExpectedSHA256: expectedSHA,
					SizeHint:       sizeHint,
				}, renderer.Handler())
				renderer.Finish()
				if err != nil {
					renderer.Status("error", fmt.Sprintf("%s: %v", f.RFilename, err))
					return err
				}
				renderer.Status("done", f.RFilename)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&quantization, "quantization", "", "Only download files matching this quantization tag (e.g. Q4_K_M)")
	cmd.Flags().BoolVar(&all, "all", false, "Download every file in the repository")
	cmd.Flags().StringVarP(&revision, "revision", "b", "main", "Revision/branch to download")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the selected file list and exit")

	return cmd
}

func selectFiles(meta hubapi.ModelMetadata, quantization string, all bool) []hubapi.RepoFile {
	if quantization != "" {
		for _, g := range hubapi.GroupQuantizations(meta) {
			if strings.EqualFold(g.QuantType, quantization) {
				return g.Files
			}
		}
		return nil
	}
	if all {
		return meta.Siblings
	}
	return nil
}
