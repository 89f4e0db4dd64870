// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hubdl/internal/coreopts"
	"hubdl/internal/hubapi"
	"hubdl/internal/hubclient"
	"hubdl/internal/hubdlerr"
	"hubdl/internal/pathguard"
	"hubdl/internal/ratelimit"
	"hubdl/internal/registry"
)

// ProgressFunc receives live Progress updates; implementations must return
// quickly since it is called from the aggregation loop's own goroutine.
type ProgressFunc func(Progress)

// VerifyRequester is the minimal surface the Downloader needs from the
// Verifier to hand off completed files without a direct package import
// cycle (internal/verify depends on internal/registry, not the reverse).
type VerifyRequester interface {
	Enqueue(localPath, expectedSHA256, registryKey string)
}

// Downloader fetches one file at a time to disk, resumable and verified,
// under the shared rate limit. Grounded on the teacher's downloadMultipart,
// generalized per SPEC_FULL's resumable-chunk and explicit-reseek
// requirements.
type Downloader struct {
	HTTP     *hubclient.Client
	Hub      *hubapi.Client
	Registry *registry.Registry
	Limiter  *ratelimit.Limiter
	Opts     *coreopts.Options
	Verifier VerifyRequester
	Progress ProgressFunc
}

// Download executes the full fetch contract: plan, fetch chunks in
// parallel, finalize, and enqueue verification when applicable.
func (d *Downloader) Download(ctx context.Context, req Request) error {
	revision := req.Revision
	if revision == "" {
		revision = "main"
	}

	finalPath, err := pathguard.Resolve(req.BasePath, req.ModelID, req.Filename)
	if err != nil {
		return err
	}
	tempPath := finalPath + ".incomplete"

	// Step 2: a stray temp file with no corresponding registry entry is a
	// restart signal, not resumable state.
	if _, ok := d.Registry.Get(finalPath); !ok {
		if _, statErr := os.Stat(tempPath); statErr == nil {
			os.Remove(tempPath)
		}
	}

	resolveURL := d.Hub.ResolveURL(req.ModelID, revision, req.Filename)
	rawURL := d.Hub.RawURL(req.ModelID, revision, req.Filename)

	probe, err := probeSize(ctx, d.HTTP, resolveURL, rawURL, req.Token)
	if err != nil {
		return err
	}
	total := probe.total
	if total == 0 && req.SizeHint > 0 {
		total = int64(req.SizeHint)
	}

	resumeFrom, err := resumeOffset(tempPath, total)
	if err != nil {
		return err
	}
	if err := preallocate(tempPath, total); err != nil {
		return err
	}

	opts := d.Opts.Load()
	plans := buildChunkPlan(resumeFrom, total, opts)

	if err := d.Registry.InsertOrUpdate(registry.Entry{
		ModelID:        req.ModelID,
		Filename:       req.Filename,
		LocalPath:      finalPath,
		URL:            probe.url,
		TotalSize:      total,
		DownloadedSize: resumeFrom,
		Status:         registry.StatusIncomplete,
		ExpectedSHA256: req.ExpectedSHA256,
	}); err != nil {
		return hubdlerr.RegistryCorrupt(err)
	}

	if len(plans) == 0 {
		// Already fully downloaded by a prior run; fall through to finalize.
		return d.finalize(finalPath, tempPath, req, total, total)
	}

	runDownloaded, err := d.runChunks(ctx, req, probe.url, finalPath, tempPath, total, plans, opts)
	if err != nil {
		if e, ok := hubdlerr.As(err); ok && e.Kind == hubdlerr.KindCancelled {
			d.markIncomplete(finalPath, req, resumeFrom+runDownloaded, total)
		}
		return err
	}

	return d.finalize(finalPath, tempPath, req, total, total)
}

// runChunks drives every chunk worker to completion and returns the bytes
// actually transferred during this run (not counting any resumeFrom
// offset already on disk from a prior run), so a cancellation can record
// the registry's true downloaded_size instead of the pre-run offset.
func (d *Downloader) runChunks(ctx context.Context, req Request, url, finalPath, tempPath string, total int64, plans []chunkPlan, opts coreopts.Snapshot) (int64, error) {
	file, err := os.OpenFile(tempPath, os.O_RDWR, 0o644)
	if err != nil {
		return 0, hubdlerr.IO(err)
	}
	defer file.Close()

	concurrency := opts.ConcurrentThreads
	if concurrency <= 0 {
		concurrency = coreopts.DefaultConcurrentThreads
	}
	sem := make(chan struct{}, concurrency)

	states := make([]*chunkState, len(plans))
	for i := range plans {
		states[i] = newChunkState()
	}

	stopProgress := make(chan struct{})
	var progressWG sync.WaitGroup
	if d.Progress != nil {
		progressWG.Add(1)
		go func() {
			defer progressWG.Done()
			ticker := time.NewTicker(opts.ProgressUpdateInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stopProgress:
					d.Progress(aggregateProgress(req.Filename, total, plans, states))
					return
				case <-ticker.C:
					d.Progress(aggregateProgress(req.Filename, total, plans, states))
				}
			}
		}()
	}

	var wg sync.WaitGroup
	var firstErr atomicErr
	for _, plan := range plans {
		plan := plan
		idx := plan.id
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			worker := &chunkWorker{
				client:  d.HTTP,
				limiter: d.Limiter,
				url:     url,
				token:   req.Token,
				file:    file,
				plan:    plan,
				state:   states[idx],
				opts:    opts,
			}
			if err := worker.run(ctx); err != nil {
				firstErr.store(err)
			}
		}()
	}
	wg.Wait()
	close(stopProgress)
	progressWG.Wait()

	var runDownloaded int64
	for _, s := range states {
		downloaded, _ := s.snapshot()
		runDownloaded += downloaded
	}

	return runDownloaded, firstErr.load()
}

func (d *Downloader) finalize(finalPath, tempPath string, req Request, downloaded, total int64) error {
	f, err := os.OpenFile(tempPath, os.O_RDWR, 0o644)
	if err != nil {
		return hubdlerr.IO(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return hubdlerr.IO(err)
	}
	if err := f.Close(); err != nil {
		return hubdlerr.IO(err)
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return hubdlerr.IO(err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return hubdlerr.IO(fmt.Errorf("rename %s -> %s: %w", tempPath, finalPath, err))
	}

	// Complete is tentative until the Verifier confirms or disputes the
	// hash.
	if err := d.Registry.InsertOrUpdate(registry.Entry{
		ModelID:        req.ModelID,
		Filename:       req.Filename,
		LocalPath:      finalPath,
		TotalSize:      total,
		DownloadedSize: downloaded,
		Status:         registry.StatusComplete,
		ExpectedSHA256: req.ExpectedSHA256,
	}); err != nil {
		return hubdlerr.RegistryCorrupt(err)
	}

	if req.ExpectedSHA256 != "" && d.Verifier != nil {
		d.Verifier.Enqueue(finalPath, req.ExpectedSHA256, finalPath)
	}
	return nil
}

func (d *Downloader) markIncomplete(finalPath string, req Request, downloaded, total int64) {
	_ = d.Registry.InsertOrUpdate(registry.Entry{
		ModelID:        req.ModelID,
		Filename:       req.Filename,
		LocalPath:      finalPath,
		TotalSize:      total,
		DownloadedSize: downloaded,
		Status:         registry.StatusIncomplete,
		ExpectedSHA256: req.ExpectedSHA256,
	})
}
