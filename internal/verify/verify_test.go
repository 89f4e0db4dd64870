// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hubdl/internal/coreopts"
	"hubdl/internal/registry"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func newTestVerifier(t *testing.T, reg *registry.Registry) *Verifier {
	t.Helper()
	opts := coreopts.New()
	opts.SetFrom(coreopts.Settings{
		ConcurrentVerifications:   2,
		VerificationBufferBytes:   16,
		VerificationUpdateInterval: 5 * time.Millisecond,
	})
	return NewVerifier(reg, opts, nil)
}

func TestVerifyAllMatchingHashMarksComplete(t *testing.T) {
	dir := t.TempDir()
	content := []byte("the quick brown fox jumps over the lazy dog, repeated for length")
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	reg := registry.New(filepath.Join(dir, "reg.toml"))
	_ = reg.InsertOrUpdate(registry.Entry{LocalPath: path, Status: registry.StatusComplete})

	v := newTestVerifier(t, reg)
	expected := sha256Hex(content)
	if err := v.VerifyAll(context.Background(), []Request{{LocalPath: path, ExpectedSHA256: expected, RegistryKey: path}}); err != nil {
		t.Fatal(err)
	}

	entry, ok := reg.Get(path)
	if !ok {
		t.Fatal("expected registry entry to exist")
	}
	if entry.Status != registry.StatusComplete {
		t.Errorf("expected StatusComplete, got %s", entry.Status)
	}
}

func TestVerifyAllMismatchedHashMarksHashMismatch(t *testing.T) {
	dir := t.TempDir()
	content := []byte("some file content that will not match the expected hash")
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	reg := registry.New(filepath.Join(dir, "reg.toml"))
	_ = reg.InsertOrUpdate(registry.Entry{LocalPath: path, Status: registry.StatusComplete})

	v := newTestVerifier(t, reg)
	if err := v.VerifyAll(context.Background(), []Request{{LocalPath: path, ExpectedSHA256: "deadbeef", RegistryKey: path}}); err != nil {
		t.Fatal(err)
	}

	entry, ok := reg.Get(path)
	if !ok {
		t.Fatal("expected registry entry to exist")
	}
	if entry.Status != registry.StatusHashMismatch {
		t.Errorf("expected StatusHashMismatch, got %s", entry.Status)
	}
}

func TestVerifyOneClearsProgressOnCompletion(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 1000)
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	reg := registry.New(filepath.Join(dir, "reg.toml"))
	v := newTestVerifier(t, reg)

	v.verifyOne(context.Background(), Request{LocalPath: path, ExpectedSHA256: sha256Hex(content), RegistryKey: path})

	if snap := v.Snapshot(); len(snap) != 0 {
		t.Errorf("expected progress record removed after completion, got %d entries", len(snap))
	}
}

func TestVerifyOnePublishesProgress(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 10000)
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	reg := registry.New(filepath.Join(dir, "reg.toml"))

	var mu sync.Mutex
	var seen []Progress
	opts := coreopts.New()
	opts.SetFrom(coreopts.Settings{VerificationBufferBytes: 8, VerificationUpdateInterval: time.Microsecond})
	v := NewVerifier(reg, opts, func(p Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	v.verifyOne(context.Background(), Request{LocalPath: path, ExpectedSHA256: sha256Hex(content), RegistryKey: path})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("expected at least one progress publication")
	}
	last := seen[len(seen)-1]
	if last.VerifiedBytes != int64(len(content)) {
		t.Errorf("expected final progress to report full size %d, got %d", len(content), last.VerifiedBytes)
	}
}

func TestVerifyOneMissingFileRecordsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.bin")
	reg := registry.New(filepath.Join(dir, "reg.toml"))
	v := newTestVerifier(t, reg)

	v.verifyOne(context.Background(), Request{LocalPath: path, ExpectedSHA256: "abc", RegistryKey: path})

	entry, ok := reg.Get(path)
	if !ok {
		t.Fatal("expected registry entry to exist even for missing file")
	}
	if entry.Status != registry.StatusHashMismatch {
		t.Errorf("expected StatusHashMismatch for unreadable file, got %s", entry.Status)
	}
}

func TestEnqueueRunsAsynchronously(t *testing.T) {
	dir := t.TempDir()
	content := []byte("async enqueue content")
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	reg := registry.New(filepath.Join(dir, "reg.toml"))
	v := newTestVerifier(t, reg)

	v.Enqueue(path, sha256Hex(content), path)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entry, ok := reg.Get(path); ok && entry.Status == registry.StatusComplete {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected Enqueue to eventually mark the entry Complete")
}
