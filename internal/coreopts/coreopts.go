// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package coreopts holds the runtime-tunable configuration shared by every
// core component. Every field is a lock-free atomic; Load copies all fields
// into one Snapshot value, reading each field separately.
package coreopts

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable copy of Options, filled in by Load.
type Snapshot struct {
	DefaultDirectory           string
	ConcurrentThreads          int
	TargetChunks               int
	MinChunkBytes              int64
	MaxChunkBytes              int64
	MaxRetries                 int
	DownloadTimeout            time.Duration
	RetryDelay                 time.Duration
	ProgressUpdateInterval     time.Duration
	VerificationOnCompletion   bool
	ConcurrentVerifications    int
	VerificationBufferBytes    int
	VerificationUpdateInterval time.Duration
	RateLimitEnabled           bool
	RateLimitBytesPerSec       int64
	Endpoint                   string
	Token                      string
}

// Defaults for chunking, verification, and the CLI surface.
const (
	DefaultConcurrentThreads          = 8
	DefaultTargetChunks               = 20
	DefaultMinChunkBytes        int64 = 5 << 20   // 5 MiB
	DefaultMaxChunkBytes        int64 = 100 << 20 // 100 MiB
	DefaultMaxRetries                 = 5
	DefaultDownloadTimeout            = 300 * time.Second
	DefaultRetryDelay                 = 1 * time.Second
	DefaultProgressUpdateInterval     = 200 * time.Millisecond
	DefaultConcurrentVerifications    = 2
	DefaultVerificationBufferBytes    = 128 << 10 // 128 KiB
	DefaultVerificationUpdateInterval = 200 * time.Millisecond
)

// Options is the process-wide atomic configuration holder.
//
// Strings and durations are stored as atomic.Value/atomic.Int64 of their
// primitive representation so reads never block a writer and vice versa.
type Options struct {
	defaultDirectory atomic.Value // string

	concurrentThreads  atomic.Int64
	targetChunks       atomic.Int64
	minChunkBytes      atomic.Int64
	maxChunkBytes      atomic.Int64
	maxRetries         atomic.Int64
	downloadTimeoutNs  atomic.Int64
	retryDelayNs       atomic.Int64
	progressIntervalNs atomic.Int64

	verificationOnCompletion     atomic.Bool
	concurrentVerifications      atomic.Int64
	verificationBufferBytes      atomic.Int64
	verificationUpdateIntervalNs atomic.Int64

	rateLimitEnabled     atomic.Bool
	rateLimitBytesPerSec atomic.Int64

	endpoint atomic.Value // string
	token    atomic.Value // string
}

// New returns an Options populated with spec-mandated defaults.
func New() *Options {
	o := &Options{}
	o.defaultDirectory.Store("")
	o.concurrentThreads.Store(DefaultConcurrentThreads)
	o.targetChunks.Store(DefaultTargetChunks)
	o.minChunkBytes.Store(DefaultMinChunkBytes)
	o.maxChunkBytes.Store(DefaultMaxChunkBytes)
	o.maxRetries.Store(DefaultMaxRetries)
	o.downloadTimeoutNs.Store(int64(DefaultDownloadTimeout))
	o.retryDelayNs.Store(int64(DefaultRetryDelay))
	o.progressIntervalNs.Store(int64(DefaultProgressUpdateInterval))
	o.verificationOnCompletion.Store(true)
	o.concurrentVerifications.Store(DefaultConcurrentVerifications)
	o.verificationBufferBytes.Store(DefaultVerificationBufferBytes)
	o.verificationUpdateIntervalNs.Store(int64(DefaultVerificationUpdateInterval))
	o.rateLimitEnabled.Store(false)
	o.rateLimitBytesPerSec.Store(0)
	o.endpoint.Store("")
	o.token.Store("")
	return o
}

// Settings is the externally-facing configuration shape (CLI flags, config
// file, API request) that SetFrom consumes in one pass.
type Settings struct {
	DefaultDirectory           string
	ConcurrentThreads          int
	TargetChunks               int
	MinChunkBytes              int64
	MaxChunkBytes              int64
	MaxRetries                 int
	DownloadTimeout            time.Duration
	RetryDelay                 time.Duration
	ProgressUpdateInterval     time.Duration
	VerificationOnCompletion   *bool
	ConcurrentVerifications    int
	VerificationBufferBytes    int
	VerificationUpdateInterval time.Duration
	RateLimitEnabled           bool
	RateLimitBytesPerSec       int64
	Endpoint                   string
	Token                      string
}

// SetFrom applies non-zero fields from s to o in a single pass. Zero values
// are treated as "not specified" and leave the current setting untouched,
// except for the explicit *bool fields (applied only when non-nil),
// RateLimitEnabled, which is always applied (false disables rate limiting),
// and MaxRetries, which is always applied since 0 is itself a meaningful value
// (the first transient error becomes terminal). Callers that want to leave
// MaxRetries untouched should populate s.MaxRetries from a prior Load().
func (o *Options) SetFrom(s Settings) {
	if s.DefaultDirectory != "" {
		o.defaultDirectory.Store(s.DefaultDirectory)
	}
	if s.ConcurrentThreads > 0 {
		o.concurrentThreads.Store(int64(s.ConcurrentThreads))
	}
	if s.TargetChunks > 0 {
		o.targetChunks.Store(int64(s.TargetChunks))
	}
	if s.MinChunkBytes > 0 {
		o.minChunkBytes.Store(s.MinChunkBytes)
	}
	if s.MaxChunkBytes > 0 {
		o.maxChunkBytes.Store(s.MaxChunkBytes)
	}
	if s.DownloadTimeout > 0 {
		o.downloadTimeoutNs.Store(int64(s.DownloadTimeout))
	}
	if s.RetryDelay > 0 {
		o.retryDelayNs.Store(int64(s.RetryDelay))
	}
	if s.ProgressUpdateInterval > 0 {
		o.progressIntervalNs.Store(int64(s.ProgressUpdateInterval))
	}
	if s.VerificationOnCompletion != nil {
		o.verificationOnCompletion.Store(*s.VerificationOnCompletion)
	}
	if s.ConcurrentVerifications > 0 {
		o.concurrentVerifications.Store(int64(s.ConcurrentVerifications))
	}
	if s.VerificationBufferBytes > 0 {
		o.verificationBufferBytes.Store(int64(s.VerificationBufferBytes))
	}
	if s.VerificationUpdateInterval > 0 {
		o.verificationUpdateIntervalNs.Store(int64(s.VerificationUpdateInterval))
	}
	o.rateLimitEnabled.Store(s.RateLimitEnabled)
	if s.RateLimitBytesPerSec > 0 {
		o.rateLimitBytesPerSec.Store(s.RateLimitBytesPerSec)
	}
	if s.Endpoint != "" {
		o.endpoint.Store(s.Endpoint)
	}
	if s.Token != "" {
		o.token.Store(s.Token)
	}
	o.maxRetries.Store(int64(s.MaxRetries))
}

// Load returns a snapshot of all current settings. Each field is read
// atomically on its own; a SetFrom running at the same time may be only
// partly visible in the result.
func (o *Options) Load() Snapshot {
	return Snapshot{
		DefaultDirectory:           o.stringOr(&o.defaultDirectory, ""),
		ConcurrentThreads:          int(o.concurrentThreads.Load()),
		TargetChunks:               int(o.targetChunks.Load()),
		MinChunkBytes:              o.minChunkBytes.Load(),
		MaxChunkBytes:              o.maxChunkBytes.Load(),
		MaxRetries:                 int(o.maxRetries.Load()),
		DownloadTimeout:            time.Duration(o.downloadTimeoutNs.Load()),
		RetryDelay:                 time.Duration(o.retryDelayNs.Load()),
		ProgressUpdateInterval:     time.Duration(o.progressIntervalNs.Load()),
		VerificationOnCompletion:   o.verificationOnCompletion.Load(),
		ConcurrentVerifications:    int(o.concurrentVerifications.Load()),
		VerificationBufferBytes:    int(o.verificationBufferBytes.Load()),
		VerificationUpdateInterval: time.Duration(o.verificationUpdateIntervalNs.Load()),
		RateLimitEnabled:           o.rateLimitEnabled.Load(),
		RateLimitBytesPerSec:       o.rateLimitBytesPerSec.Load(),
		Endpoint:                   o.stringOr(&o.endpoint, ""),
		Token:                      o.stringOr(&o.token, ""),
	}
}

func (o *Options) stringOr(v *atomic.Value, def string) string {
	s, ok := v.Load().(string)
	if !ok {
		return def
	}
	return s
}
