// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hubapi

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultEndpoint is the hub host used when CoreOptions carries no override.
const DefaultEndpoint = "https://huggingface.co"

func searchURL(endpoint, query, sortField string) string {
	return fmt.Sprintf("%s/api/models?search=%s&limit=50&sort=%s&direction=-1",
		endpoint, url.QueryEscape(query), url.QueryEscape(sortField))
}

func metadataURL(endpoint, modelID string) string {
	return fmt.Sprintf("%s/api/models/%s", endpoint, modelID)
}

func treeURL(endpoint, modelID, revision, prefix string) string {
	if prefix == "" {
		return fmt.Sprintf("%s/api/models/%s/tree/%s?recursive=1", endpoint, modelID, url.PathEscape(revision))
	}
	return fmt.Sprintf("%s/api/models/%s/tree/%s/%s?recursive=1", endpoint, modelID, url.PathEscape(revision), pathEscapeAll(prefix))
}

func resolveURL(endpoint, modelID, revision, path string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", endpoint, modelID, url.PathEscape(revision), pathEscapeAll(path))
}

func rawURL(endpoint, modelID, revision, path string) string {
	return fmt.Sprintf("%s/%s/raw/%s/%s", endpoint, modelID, url.PathEscape(revision), pathEscapeAll(path))
}

func modelPageURL(endpoint, modelID string) string {
	return fmt.Sprintf("%s/%s", endpoint, modelID)
}

func pathEscapeAll(p string) string {
	segs := strings.Split(p, "/")
	for i := range segs {
		segs[i] = url.PathEscape(segs[i])
	}
	return strings.Join(segs, "/")
}
