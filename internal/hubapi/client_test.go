// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hubdl/internal/hubclient"
	"hubdl/internal/hubdlerr"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient(hubclient.Build(5*time.Second), srv.URL, 1000)
	return c, srv
}

func TestSearchExactMatchShortCircuits(t *testing.T) {
	rows := []apiSearchRow{
		{ID: "author/name", Downloads: 10},
		{ID: "author/other", Downloads: 1000},
	}
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	results, err := c.Search(context.Background(), "author/name", SortDownloads, DirDesc, 0, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !strings.EqualFold(results[0].ID, "author/name") {
		t.Errorf("expected exact-match short-circuit, got %+v", results)
	}
}

func TestSearchAppliesMinimumFilters(t *testing.T) {
	rows := []apiSearchRow{
		{ID: "a/b", Downloads: 5, Likes: 1},
		{ID: "c/d", Downloads: 500, Likes: 50},
	}
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	results, err := c.Search(context.Background(), "x", SortDownloads, DirDesc, 100, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "c/d" {
		t.Errorf("expected only c/d after min_downloads filter, got %+v", results)
	}
}

func TestSearchSortsByNameClientSide(t *testing.T) {
	rows := []apiSearchRow{{ID: "zebra/x"}, {ID: "alpha/x"}}
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	results, err := c.Search(context.Background(), "x", SortName, DirAsc, 0, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "alpha/x" || results[1].ID != "zebra/x" {
		t.Errorf("expected alphabetical order, got %+v", results)
	}
}

func TestMetadataGatedWithoutTokenReturnsAuthRequired(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiModelResponse{ID: "a/b", Gated: "auto"})
	}))
	defer srv.Close()

	_, err := c.Metadata(context.Background(), "a/b", "main", "")
	e, ok := hubdlerr.As(err)
	if !ok || e.Kind != hubdlerr.KindAuthRequired {
		t.Fatalf("expected AuthRequired, got %v", err)
	}
	if e.ModelURL == "" {
		t.Error("expected ModelURL to be set")
	}
}

func TestMetadataWalksSubdirectories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/a/b", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiModelResponse{ID: "a/b"})
	})
	mux.HandleFunc("/api/models/a/b/tree/main", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]apiNode{
			{Type: "file", Path: "root.gguf", Size: 10},
			{Type: "directory", Path: "sub"},
		})
	})
	mux.HandleFunc("/api/models/a/b/tree/main/sub", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]apiNode{
			{Type: "file", Path: "sub/nested.gguf", Size: 20},
		})
	})
	c, srv := newTestClient(t, mux)
	defer srv.Close()

	meta, err := c.Metadata(context.Background(), "a/b", "main", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Siblings) != 2 {
		t.Fatalf("expected 2 siblings (root + nested), got %d: %+v", len(meta.Siblings), meta.Siblings)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache()
	meta := ModelMetadata{ID: "a/b"}
	c.PutMetadata("a/b", meta)
	got, ok := c.GetMetadata("a/b")
	if !ok || got.ID != "a/b" {
		t.Errorf("cache did not round-trip metadata")
	}

	results := []ModelInfo{{ID: "a/b"}}
	c.PutSearch("q", SortDownloads, DirDesc, 0, 0, results)
	gotSearch, ok := c.GetSearch("q", SortDownloads, DirDesc, 0, 0)
	if !ok || len(gotSearch) != 1 {
		t.Errorf("cache did not round-trip search results")
	}
}
