// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hubapi

import "testing"

func sz(n uint64) *uint64 { return &n }

func TestBuildFileTreeDirectoriesFirst(t *testing.T) {
	files := []RepoFile{
		{RFilename: "README.md", Size: sz(10)},
		{RFilename: "subdir/a.gguf", Size: sz(100)},
		{RFilename: "subdir/b.gguf", Size: sz(200)},
		{RFilename: "zzz.gguf", Size: sz(5)},
	}
	root := BuildFileTree(files)
	if len(root.Children) != 3 {
		t.Fatalf("expected 3 top-level children, got %d", len(root.Children))
	}
	if !root.Children[0].IsDir || root.Children[0].Name != "subdir" {
		t.Errorf("expected subdir first, got %+v", root.Children[0])
	}
	if root.Children[1].Name != "README.md" || root.Children[2].Name != "zzz.gguf" {
		t.Errorf("expected alphabetical file order after dirs, got %+v %+v", root.Children[1], root.Children[2])
	}
}

func TestBuildFileTreeAggregatesDirSize(t *testing.T) {
	files := []RepoFile{
		{RFilename: "subdir/a.gguf", Size: sz(100)},
		{RFilename: "subdir/b.gguf", Size: sz(200)},
	}
	root := BuildFileTree(files)
	sub := root.Children[0]
	if sub.Size != 300 {
		t.Errorf("subdir size = %d, want 300", sub.Size)
	}
}

func TestRenderFileTreeContainsAllFiles(t *testing.T) {
	files := []RepoFile{
		{RFilename: "a.gguf", Size: sz(1024)},
	}
	root := BuildFileTree(files)
	out := RenderFileTree(root)
	if out == "" {
		t.Fatal("expected non-empty render")
	}
}
