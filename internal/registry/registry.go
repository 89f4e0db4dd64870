// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package registry maintains the durable, TOML-backed record of every file
// this process has attempted to download. All mutation goes through a
// single serializing coordinator; callers never touch the file directly.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Status enumerates the terminal or in-flight state of a DownloadEntry.
type Status string

const (
	StatusComplete      Status = "Complete"
	StatusIncomplete    Status = "Incomplete"
	StatusHashMismatch  Status = "HashMismatch"
)

// Entry is a registry record, keyed by its LocalPath.
type Entry struct {
	ModelID         string `toml:"model_id"`
	Filename        string `toml:"filename"`
	LocalPath       string `toml:"local_path"`
	URL             string `toml:"url"`
	TotalSize       int64  `toml:"total_size"`
	DownloadedSize  int64  `toml:"downloaded_size"`
	Status          Status `toml:"status"`
	ExpectedSHA256  string `toml:"expected_sha256,omitempty"`
	Timestamp       string `toml:"timestamp"`
}

// file is the on-disk TOML document shape: a single top-level array table.
type file struct {
	Entries []Entry `toml:"entries"`
}

// Registry is the in-memory, mutex-serialized index keyed by absolute local
// path. The zero value is not usable; construct with New or Load.
type Registry struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// New returns an empty registry bound to path (not yet persisted).
func New(path string) *Registry {
	return &Registry{path: path, entries: make(map[string]Entry)}
}

// Load reads path and returns a populated Registry. A missing or corrupt
// file yields an empty registry and a non-nil warning error describing why
// — callers should log the warning and continue: registry corruption
// never blocks downloads, it only loses prior history.
func Load(path string) (*Registry, error) {
	r := New(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, fmt.Errorf("registry: %s not found, starting empty: %w", path, err)
		}
		return r, fmt.Errorf("registry: read %s: %w", path, err)
	}

	var f file
	if _, err := toml.Decode(string(data), &f); err != nil {
		return r, fmt.Errorf("registry: corrupt registry at %s, resetting: %w", path, err)
	}
	for _, e := range f.Entries {
		r.entries[e.LocalPath] = e
	}
	return r, nil
}

// Save writes the registry atomically: encode to a temp file in the same
// directory, then rename over the target. On error the target file is left
// untouched; callers should surface it to the status channel and keep the
// in-memory registry authoritative until the next successful save.
func (r *Registry) Save() error {
	r.mu.Lock()
	snapshot := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	path := r.path
	r.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("registry: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".hf-downloads-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("registry: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	enc := toml.NewEncoder(tmp)
	if err := enc.Encode(file{Entries: snapshot}); err != nil {
		tmp.Close()
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("registry: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("registry: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("registry: rename into place: %w", err)
	}
	return nil
}

// InsertOrUpdate writes entry keyed by its LocalPath and persists eagerly.
func (r *Registry) InsertOrUpdate(entry Entry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	r.mu.Lock()
	r.entries[entry.LocalPath] = entry
	r.mu.Unlock()
	return r.Save()
}

// Get returns the entry for localPath, if any.
func (r *Registry) Get(localPath string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[localPath]
	return e, ok
}

// Incomplete returns every entry whose Status is Incomplete.
func (r *Registry) Incomplete() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Status == StatusIncomplete {
			out = append(out, e)
		}
	}
	return out
}

// Complete returns a map from local path to expected sha256 (possibly
// empty) for every entry whose Status is Complete.
func (r *Registry) Complete() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string)
	for _, e := range r.entries {
		if e.Status == StatusComplete {
			out[e.LocalPath] = e.ExpectedSHA256
		}
	}
	return out
}

// Snapshot returns a defensive copy of every entry currently held, for
// callers that need a consistent read without holding the registry lock.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}
