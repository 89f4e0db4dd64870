// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hubapi

import (
	"fmt"
	"sync"
)

// Cache is a process-wide, reader-writer-lock-guarded cache of metadata and
// search results: metadata/quantizations/file trees by model id; searches
// by the full query tuple. Writers hold the lock only around the insert
// itself, mirroring the teacher's JobManager RWMutex discipline.
type Cache struct {
	mu       sync.RWMutex
	metadata map[string]ModelMetadata
	searches map[string][]ModelInfo
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{
		metadata: make(map[string]ModelMetadata),
		searches: make(map[string][]ModelInfo),
	}
}

// GetMetadata returns a cached ModelMetadata for modelID, if present.
func (c *Cache) GetMetadata(modelID string) (ModelMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.metadata[modelID]
	return m, ok
}

// PutMetadata populates the metadata cache for modelID.
func (c *Cache) PutMetadata(modelID string, meta ModelMetadata) {
	c.mu.Lock()
	c.metadata[modelID] = meta
	c.mu.Unlock()
}

// InvalidateMetadata drops any cached entry for modelID, used when a
// caller needs to force a fresh fetch (e.g. after a registry reset).
func (c *Cache) InvalidateMetadata(modelID string) {
	c.mu.Lock()
	delete(c.metadata, modelID)
	c.mu.Unlock()
}

func searchKey(query string, field SortField, dir SortDirection, minDownloads, minLikes uint64) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", query, field, dir, minDownloads, minLikes)
}

// GetSearch returns a cached search result set for the given query tuple.
func (c *Cache) GetSearch(query string, field SortField, dir SortDirection, minDownloads, minLikes uint64) ([]ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.searches[searchKey(query, field, dir, minDownloads, minLikes)]
	return r, ok
}

// PutSearch populates the search cache for the given query tuple.
func (c *Cache) PutSearch(query string, field SortField, dir SortDirection, minDownloads, minLikes uint64, results []ModelInfo) {
	c.mu.Lock()
	c.searches[searchKey(query, field, dir, minDownloads, minLikes)] = results
	c.mu.Unlock()
}
