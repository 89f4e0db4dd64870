// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coreopts

import (
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	o := New()
	s := o.Load()
	if s.ConcurrentThreads != DefaultConcurrentThreads {
		t.Errorf("ConcurrentThreads = %d, want %d", s.ConcurrentThreads, DefaultConcurrentThreads)
	}
	if s.MinChunkBytes != DefaultMinChunkBytes || s.MaxChunkBytes != DefaultMaxChunkBytes {
		t.Errorf("chunk bounds = [%d, %d], want [%d, %d]", s.MinChunkBytes, s.MaxChunkBytes, DefaultMinChunkBytes, DefaultMaxChunkBytes)
	}
	if !s.VerificationOnCompletion {
		t.Error("VerificationOnCompletion should default to true")
	}
	if s.RateLimitEnabled {
		t.Error("RateLimitEnabled should default to false")
	}
}

func TestSetFromPartialLeavesRest(t *testing.T) {
	o := New()
	base := o.Load()
	o.SetFrom(Settings{ConcurrentThreads: 16, MaxRetries: base.MaxRetries})
	after := o.Load()
	if after.ConcurrentThreads != 16 {
		t.Errorf("ConcurrentThreads = %d, want 16", after.ConcurrentThreads)
	}
	if after.MaxChunkBytes != base.MaxChunkBytes {
		t.Errorf("MaxChunkBytes changed unexpectedly: %d != %d", after.MaxChunkBytes, base.MaxChunkBytes)
	}
}

func TestSetFromMaxRetriesZeroIsApplied(t *testing.T) {
	o := New()
	o.SetFrom(Settings{MaxRetries: 0})
	if got := o.Load().MaxRetries; got != 0 {
		t.Errorf("MaxRetries = %d, want 0", got)
	}
}

func TestSetFromVerificationOnCompletionPointer(t *testing.T) {
	o := New()
	off := false
	o.SetFrom(Settings{MaxRetries: DefaultMaxRetries, VerificationOnCompletion: &off})
	if o.Load().VerificationOnCompletion {
		t.Error("expected VerificationOnCompletion to be disabled")
	}
}

func TestSetFromDurations(t *testing.T) {
	o := New()
	o.SetFrom(Settings{MaxRetries: DefaultMaxRetries, DownloadTimeout: 5 * time.Second, RetryDelay: 50 * time.Millisecond})
	s := o.Load()
	if s.DownloadTimeout != 5*time.Second {
		t.Errorf("DownloadTimeout = %v", s.DownloadTimeout)
	}
	if s.RetryDelay != 50*time.Millisecond {
		t.Errorf("RetryDelay = %v", s.RetryDelay)
	}
}
