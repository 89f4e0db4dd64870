// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

/*
Package hubdl is the public entry point to the model-hub download engine:
search, inspect, and download model artifacts with resumable, verified,
rate-limited transfers.

# Quick Start

	package main

	import (
		"context"
		"fmt"
		"log"

		"hubdl/pkg/hubdl"
	)

	func main() {
		client, err := hubdl.New(hubdl.DefaultSettings())
		if err != nil {
			log.Fatal(err)
		}

		err = client.DownloadFile(context.Background(), hubdl.DownloadRequest{
			ModelID:  "TheBloke/Mistral-7B-Instruct-v0.2-GGUF",
			Filename: "mistral-7b-instruct-v0.2.Q4_0.gguf",
		}, func(p hubdl.DownloadProgress) {
			fmt.Printf("%s: %d/%d\n", p.Filename, p.Downloaded, p.Total)
		})
		if err != nil {
			log.Fatal(err)
		}
	}

# Searching and Listing

	results, err := client.Search(ctx, "mistral", hubdl.SearchOptions{MinDownloads: 1000})
	meta, err := client.Files(ctx, "TheBloke/Mistral-7B-Instruct-v0.2-GGUF", "main")

# Queued Downloads

For multiple files submitted concurrently from a UI or CLI, use Enqueue plus
Run to drive a single serialized worker:

	client.Enqueue(hubdl.DownloadRequest{ModelID: "...", Filename: "..."}, sizeHint)
	go client.RunQueue(ctx)

# Resuming

	entries := client.IncompleteDownloads()
	err := client.ResumeAll(ctx, progressFunc)
*/
package hubdl
