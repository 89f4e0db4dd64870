// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hubdl

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"hubdl/internal/coreopts"
	"hubdl/internal/downloader"
	"hubdl/internal/hubapi"
	"hubdl/internal/hubclient"
	"hubdl/internal/jobqueue"
	"hubdl/internal/ratelimit"
	"hubdl/internal/registry"
	"hubdl/internal/verify"
)

// Settings configures a Client. All fields have sensible defaults; at
// minimum set OutputDir. Mirrors the teacher's pkg/hfdownloader.Settings
// shape, generalized to the new engine's CoreOptions surface.
type Settings struct {
	OutputDir                 string
	Endpoint                  string
	Token                     string
	ConcurrentThreads         int
	TargetChunks              int
	MaxRetries                int
	DownloadTimeout           time.Duration
	RetryDelay                time.Duration
	ProgressUpdateInterval    time.Duration
	ConcurrentVerifications   int
	VerificationBufferBytes   int
	RateLimitEnabled          bool
	RateLimitBytesPerSec      int64
	APIRequestsPerSecond      float64
}

// DefaultSettings returns Settings with spec-mandated defaults filled in.
func DefaultSettings() Settings {
	return Settings{
		OutputDir:               "Storage",
		Endpoint:                hubapi.DefaultEndpoint,
		ConcurrentThreads:       coreopts.DefaultConcurrentThreads,
		TargetChunks:            coreopts.DefaultTargetChunks,
		MaxRetries:              coreopts.DefaultMaxRetries,
		DownloadTimeout:         coreopts.DefaultDownloadTimeout,
		RetryDelay:              coreopts.DefaultRetryDelay,
		ProgressUpdateInterval:  coreopts.DefaultProgressUpdateInterval,
		ConcurrentVerifications: coreopts.DefaultConcurrentVerifications,
		VerificationBufferBytes: coreopts.DefaultVerificationBufferBytes,
		APIRequestsPerSecond:    5,
	}
}

// DownloadRequest names one file to fetch. Mirrors spec.md's DownloadRequest.
type DownloadRequest struct {
	ModelID        string
	Filename       string
	Revision       string
	ExpectedSHA256 string
	Token          string
	SizeHint       uint64
}

// DownloadProgress is re-exported from internal/downloader for callers that
// only need the public facade.
type DownloadProgress = downloader.Progress

// SearchOptions narrows and orders a Search call.
type SearchOptions struct {
	SortField    hubapi.SortField
	Direction    hubapi.SortDirection
	MinDownloads uint64
	MinLikes     uint64
	Token        string
}

// Client is the façade binding every internal component into one
// ready-to-use engine, analogous to the teacher's package-level Download
// function plus an implicit server.Config — but held as a value so a
// process can run more than one independently-configured engine.
type Client struct {
	opts       *coreopts.Options
	registry   *registry.Registry
	httpClient *hubclient.Client
	hub        *hubapi.Client
	limiter    *ratelimit.Limiter
	downloader *downloader.Downloader
	verifier   *verify.Verifier
	queue      *jobqueue.JobQueue

	outputDir string
}

// New constructs a Client from s, loading any existing registry at
// {OutputDir}/hf-downloads.toml. A corrupt or missing registry file yields
// an empty registry, not an error.
func New(s Settings) (*Client, error) {
	if s.OutputDir == "" {
		s.OutputDir = "Storage"
	}
	if s.Endpoint == "" {
		s.Endpoint = hubapi.DefaultEndpoint
	}

	opts := coreopts.New()
	vOnCompletion := true
	opts.SetFrom(coreopts.Settings{
		DefaultDirectory:           s.OutputDir,
		ConcurrentThreads:          s.ConcurrentThreads,
		TargetChunks:               s.TargetChunks,
		MaxRetries:                 s.MaxRetries,
		DownloadTimeout:            s.DownloadTimeout,
		RetryDelay:                 s.RetryDelay,
		ProgressUpdateInterval:     s.ProgressUpdateInterval,
		VerificationOnCompletion:   &vOnCompletion,
		ConcurrentVerifications:    s.ConcurrentVerifications,
		VerificationBufferBytes:    s.VerificationBufferBytes,
		RateLimitEnabled:           s.RateLimitEnabled,
		RateLimitBytesPerSec:       s.RateLimitBytesPerSec,
		Endpoint:                   s.Endpoint,
		Token:                      s.Token,
	})

	regPath := filepath.Join(s.OutputDir, "hf-downloads.toml")
	reg, _ := registry.Load(regPath) // a warning error is swallowed by design; never blocks startup

	timeout := s.DownloadTimeout
	if timeout <= 0 {
		timeout = coreopts.DefaultDownloadTimeout
	}
	httpClient := hubclient.Build(timeout)

	apiRPS := s.APIRequestsPerSecond
	if apiRPS <= 0 {
		apiRPS = 5
	}
	hub := hubapi.NewClient(httpClient, s.Endpoint, apiRPS)

	limiter := ratelimit.New(float64(s.RateLimitBytesPerSec), s.RateLimitEnabled)

	verifier := verify.NewVerifier(reg, opts, nil)

	dl := &downloader.Downloader{
		HTTP:     httpClient,
		Hub:      hub,
		Registry: reg,
		Limiter:  limiter,
		Opts:     opts,
		Verifier: verifier,
	}

	c := &Client{
		opts:       opts,
		registry:   reg,
		httpClient: httpClient,
		hub:        hub,
		limiter:    limiter,
		downloader: dl,
		verifier:   verifier,
		outputDir:  s.OutputDir,
	}
	c.queue = jobqueue.New(dl, nil)
	return c, nil
}

// Search queries the hub for models matching query, grounded on
// internal/hubapi.Client.Search.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]hubapi.ModelInfo, error) {
	sortField := opts.SortField
	if sortField == "" {
		sortField = hubapi.SortDownloads
	}
	direction := opts.Direction
	if direction == "" {
		direction = hubapi.DirDesc
	}
	token := opts.Token
	if token == "" {
		token = c.opts.Load().Token
	}
	return c.hub.Search(ctx, query, sortField, direction, opts.MinDownloads, opts.MinLikes, token)
}

// Files resolves modelID's metadata (gating status, URL, file listing) for
// the given revision ("" defaults to "main").
func (c *Client) Files(ctx context.Context, modelID, revision string) (hubapi.ModelMetadata, error) {
	if revision == "" {
		revision = "main"
	}
	return c.hub.Metadata(ctx, modelID, revision, c.opts.Load().Token)
}

// DownloadFile fetches exactly one file synchronously, bypassing the job
// queue. progress, if non-nil, receives live updates.
func (c *Client) DownloadFile(ctx context.Context, req DownloadRequest, progress func(DownloadProgress)) error {
	c.downloader.Progress = progress
	defer func() { c.downloader.Progress = nil }()

	token := req.Token
	if token == "" {
		token = c.opts.Load().Token
	}
	return c.downloader.Download(ctx, downloader.Request{
		ModelID:        req.ModelID,
		Filename:       req.Filename,
		BasePath:       c.outputDir,
		ExpectedSHA256: req.ExpectedSHA256,
		Token:          token,
		SizeHint:       req.SizeHint,
		Revision:       req.Revision,
	})
}

// Enqueue submits req to the serialized job queue for background
// processing by RunQueue. sizeHint drives the queue_bytes/ETA accounting
// only; pass 0 when unknown.
func (c *Client) Enqueue(req DownloadRequest, sizeHint int64) {
	c.queue.Enqueue(downloader.Request{
		ModelID:        req.ModelID,
		Filename:       req.Filename,
		BasePath:       c.outputDir,
		ExpectedSHA256: req.ExpectedSHA256,
		Token:          req.Token,
		SizeHint:       req.SizeHint,
		Revision:       req.Revision,
	}, sizeHint)
}

// RunQueue drives the single background download worker until ctx is
// cancelled. Call once, typically in its own goroutine.
func (c *Client) RunQueue(ctx context.Context) {
	c.queue.Run(ctx)
}

// QueueCount and QueueBytes report the job queue's current depth, for ETA
// rendering via jobqueue.ETAMinutes.
func (c *Client) QueueCount() int64 { return c.queue.QueueCount() }
func (c *Client) QueueBytes() int64 { return c.queue.QueueBytes() }

// IncompleteDownloads returns every registry entry still marked Incomplete.
func (c *Client) IncompleteDownloads() []registry.Entry {
	return c.registry.Incomplete()
}

// ResumeAll re-submits every Incomplete registry entry as a DownloadFile
// call, in no particular order, stopping at the first hard error.
func (c *Client) ResumeAll(ctx context.Context, progress func(DownloadProgress)) error {
	for _, e := range c.IncompleteDownloads() {
		req := DownloadRequest{
			ModelID:        e.ModelID,
			Filename:       e.Filename,
			ExpectedSHA256: e.ExpectedSHA256,
			SizeHint:       uint64(e.TotalSize),
		}
		if err := c.DownloadFile(ctx, req, progress); err != nil {
			return fmt.Errorf("resume %s: %w", e.LocalPath, err)
		}
	}
	return nil
}

// Registry exposes the underlying registry for callers that need direct
// read access (e.g. a "list" command rendering every known entry).
func (c *Client) Registry() *registry.Registry { return c.registry }

// Options exposes the live, mutable CoreOptions so a CLI's config commands
// can retune the engine without reconstructing the Client.
func (c *Client) Options() *coreopts.Options { return c.opts }
