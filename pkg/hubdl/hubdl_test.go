// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hubdl_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"hubdl/pkg/hubdl"
)

// newFakeHub serves a single model "author/name" with one file, honoring
// Range requests the way resolveURL downloads expect.
func newFakeHub(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"id": "author/name", "downloads": 42}})
	})
	mux.HandleFunc("/api/models/author/name", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "author/name"})
	})
	mux.HandleFunc("/api/models/author/name/tree/main", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"type": "file", "path": "model.bin", "size": len(payload)}})
	})
	mux.HandleFunc("/author/name/resolve/main/model.bin", func(w http.ResponseWriter, r *http.Request) {
		rangeHdr := r.Header.Get("Range")
		if rangeHdr == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.Write(payload)
			return
		}
		var start, end int64
		fmt.Sscanf(rangeHdr, "bytes=%d-%d", &start, &end)
		if end >= int64(len(payload)) {
			end = int64(len(payload)) - 1
		}
		chunk := payload[start : end+1]
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(payload)))
		w.Header().Set("Content-Length", strconv.Itoa(len(chunk)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(chunk)
	})
	return httptest.NewServer(mux)
}

func TestSearchReturnsHubResults(t *testing.T) {
	srv := newFakeHub(t, []byte("x"))
	defer srv.Close()

	s := hubdl.DefaultSettings()
	s.OutputDir = t.TempDir()
	s.Endpoint = srv.URL
	client, err := hubdl.New(s)
	if err != nil {
		t.Fatal(err)
	}

	results, err := client.Search(context.Background(), "author/name", hubdl.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "author/name" {
		t.Fatalf("unexpected search results: %+v", results)
	}
}

func TestFilesReturnsModelMetadata(t *testing.T) {
	srv := newFakeHub(t, []byte("x"))
	defer srv.Close()

	s := hubdl.DefaultSettings()
	s.OutputDir = t.TempDir()
	s.Endpoint = srv.URL
	client, err := hubdl.New(s)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := client.Files(context.Background(), "author/name", "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Siblings) != 1 || meta.Siblings[0].RFilename != "model.bin" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestDownloadFileEndToEnd(t *testing.T) {
	payload := make([]byte, 20000)
	for i := range payload {
		payload[i] = byte(i % 200)
	}
	srv := newFakeHub(t, payload)
	defer srv.Close()

	base := t.TempDir()
	s := hubdl.DefaultSettings()
	s.OutputDir = base
	s.Endpoint = srv.URL
	s.TargetChunks = 4
	s.MaxRetries = 1
	client, err := hubdl.New(s)
	if err != nil {
		t.Fatal(err)
	}

	var lastProgress hubdl.DownloadProgress
	err = client.DownloadFile(context.Background(), hubdl.DownloadRequest{
		ModelID:  "author/name",
		Filename: "model.bin",
		SizeHint: uint64(len(payload)),
	}, func(p hubdl.DownloadProgress) { lastProgress = p })
	if err != nil {
		t.Fatalf("DownloadFile failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(base, "author", "name", "model.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(payload) {
		t.Fatalf("downloaded size = %d, want %d", len(got), len(payload))
	}
	_ = lastProgress

	entries := client.Registry().Complete()
	if len(entries) != 1 {
		t.Fatalf("expected 1 complete registry entry, got %d", len(entries))
	}
}

func TestIncompleteDownloadsReflectsRegistry(t *testing.T) {
	base := t.TempDir()
	s := hubdl.DefaultSettings()
	s.OutputDir = base
	client, err := hubdl.New(s)
	if err != nil {
		t.Fatal(err)
	}
	if got := client.IncompleteDownloads(); len(got) != 0 {
		t.Fatalf("expected no incomplete entries on a fresh registry, got %d", len(got))
	}
}
