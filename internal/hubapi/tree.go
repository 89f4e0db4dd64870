// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hubapi

import (
	"fmt"
	"sort"
	"strings"
)

// BuildFileTree assembles a TreeNode from a flat repo-file listing. Each
// directory node sorts its children directories-first, then by name; every
// directory's Size is the sum of its descendants.
func BuildFileTree(files []RepoFile) *TreeNode {
	root := &TreeNode{Name: "", IsDir: true}
	index := map[string]*TreeNode{"": root}

	for _, f := range files {
		parts := strings.Split(f.RFilename, "/")
		pathSoFar := ""
		parent := root
		for i, part := range parts {
			if pathSoFar == "" {
				pathSoFar = part
			} else {
				pathSoFar = pathSoFar + "/" + part
			}
			if existing, ok := index[pathSoFar]; ok {
				parent = existing
				continue
			}
			isFile := i == len(parts)-1
			n := &TreeNode{Name: part, IsDir: !isFile}
			if isFile && f.Size != nil {
				n.Size = *f.Size
			}
			parent.Children = append(parent.Children, n)
			index[pathSoFar] = n
			parent = n
		}
	}

	sortTree(root)
	aggregateSizes(root)
	return root
}

func sortTree(n *TreeNode) {
	sort.Slice(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return a.Name < b.Name
	})
	for _, c := range n.Children {
		sortTree(c)
	}
}

// aggregateSizes sets every directory node's Size to the sum of its
// children's sizes, post-order.
func aggregateSizes(n *TreeNode) uint64 {
	if !n.IsDir {
		return n.Size
	}
	var total uint64
	for _, c := range n.Children {
		total += aggregateSizes(c)
	}
	n.Size = total
	return total
}

// RenderFileTree returns a human-readable, prefix-drawn rendering of a
// TreeNode, matching the directories-first ordering BuildFileTree produces.
func RenderFileTree(root *TreeNode) string {
	var sb strings.Builder
	renderNode(&sb, root, "", true)
	return sb.String()
}

func renderNode(sb *strings.Builder, n *TreeNode, prefix string, isLast bool) {
	if n.Name != "" {
		marker := "├── "
		if isLast {
			marker = "└── "
		}
		size := ""
		if !n.IsDir {
			size = " " + formatSize(n.Size)
		}
		fmt.Fprintf(sb, "%s%s%s%s\n", prefix, marker, n.Name, size)
	}
	for i, child := range n.Children {
		newPrefix := prefix
		if n.Name != "" {
			if isLast {
				newPrefix += "    "
			} else {
				newPrefix += "│   "
			}
		}
		renderNode(sb, child, newPrefix, i == len(n.Children)-1)
	}
}

func formatSize(size uint64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := uint64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
