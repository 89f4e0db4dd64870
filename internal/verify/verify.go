// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package verify implements the post-download content verifier: a
// streaming SHA-256 worker that updates the registry and publishes
// progress, grounded on the teacher's verifySHA256 in
// pkg/hfdownloader/verify.go generalized to a long-running service that
// accepts requests asynchronously instead of a single synchronous call.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hubdl/internal/coreopts"
	"hubdl/internal/hubdlerr"
	"hubdl/internal/registry"
)

// Request mirrors spec.md's VerifyRequest.
type Request struct {
	LocalPath      string
	ExpectedSHA256 string
	RegistryKey    string
}

// Progress mirrors spec.md's VerificationProgress, identified across
// concurrent verifications by Filename, never by index.
type Progress struct {
	Filename      string
	VerifiedBytes int64
	TotalBytes    int64
	SpeedBPS      float64
}

// ProgressFunc receives live verification Progress updates.
type ProgressFunc func(Progress)

// Verifier streams each requested file's bytes through SHA-256 with
// bounded parallelism, then updates the registry to Complete or
// HashMismatch and drops the file's progress record.
type Verifier struct {
	Registry *registry.Registry
	Opts     *coreopts.Options
	Progress ProgressFunc

	mu       sync.Mutex
	progress map[string]*Progress
}

// NewVerifier constructs a Verifier bound to reg and opts.
func NewVerifier(reg *registry.Registry, opts *coreopts.Options, progress ProgressFunc) *Verifier {
	return &Verifier{Registry: reg, Opts: opts, Progress: progress, progress: make(map[string]*Progress)}
}

// Enqueue satisfies downloader.VerifyRequester: run verifies req
// synchronously in a new goroutine so the downloader's finalize step
// never blocks on hashing. Errors are recorded in the registry, not
// returned, since there is no caller left to receive them.
func (v *Verifier) Enqueue(localPath, expectedSHA256, registryKey string) {
	go v.verifyOne(context.Background(), Request{LocalPath: localPath, ExpectedSHA256: expectedSHA256, RegistryKey: registryKey})
}

// VerifyAll runs every request in reqs with bounded concurrency
// (options.concurrent_verifications, default 2), waiting for all to
// complete. Used by a resume/batch-verify entry point rather than the
// downloader's single-file hand-off path.
func (v *Verifier) VerifyAll(ctx context.Context, reqs []Request) error {
	limit := v.Opts.Load().ConcurrentVerifications
	if limit <= 0 {
		limit = coreopts.DefaultConcurrentVerifications
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, r := range reqs {
		r := r
		g.Go(func() error {
			v.verifyOne(ctx, r)
			return nil
		})
	}
	return g.Wait()
}

func (v *Verifier) verifyOne(ctx context.Context, req Request) {
	defer v.clearProgress(req.LocalPath)

	f, err := os.Open(req.LocalPath)
	if err != nil {
		v.recordResult(req, registry.StatusHashMismatch, "")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	total := int64(0)
	if err == nil {
		total = info.Size()
	}

	opts := v.Opts.Load()
	bufSize := opts.VerificationBufferBytes
	if bufSize <= 0 {
		bufSize = coreopts.DefaultVerificationBufferBytes
	}
	interval := opts.VerificationUpdateInterval
	if interval <= 0 {
		interval = coreopts.DefaultVerificationUpdateInterval
	}

	h := sha256.New()
	buf := make([]byte, bufSize)
	var verified int64
	lastEmit := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, readErr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			verified += int64(n)
			if time.Since(lastEmit) >= interval {
				v.publish(req.LocalPath, verified, total)
				lastEmit = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			v.recordResult(req, registry.StatusHashMismatch, "")
			return
		}
	}
	v.publish(req.LocalPath, verified, total)

	sum := hex.EncodeToString(h.Sum(nil))
	if strings.EqualFold(sum, req.ExpectedSHA256) {
		v.recordResult(req, registry.StatusComplete, sum)
	} else {
		v.recordResult(req, registry.StatusHashMismatch, sum)
	}
}

func (v *Verifier) recordResult(req Request, status registry.Status, actualSHA string) {
	entry, _ := v.Registry.Get(req.LocalPath)
	entry.LocalPath = req.LocalPath
	entry.Status = status
	entry.ExpectedSHA256 = req.ExpectedSHA256
	_ = v.Registry.InsertOrUpdate(entry)

	if status == registry.StatusHashMismatch {
		log.Print(hubdlerr.HashMismatch(req.LocalPath, req.ExpectedSHA256, actualSHA).Error())
	}
}

func (v *Verifier) publish(filename string, verified, total int64) {
	p := Progress{Filename: filename, VerifiedBytes: verified, TotalBytes: total}
	v.mu.Lock()
	v.progress[filename] = &p
	v.mu.Unlock()
	if v.Progress != nil {
		v.Progress(p)
	}
}

func (v *Verifier) clearProgress(filename string) {
	v.mu.Lock()
	delete(v.progress, filename)
	v.mu.Unlock()
}

// Snapshot returns the current in-flight verification progress records.
func (v *Verifier) Snapshot() []Progress {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Progress, 0, len(v.progress))
	for _, p := range v.progress {
		out = append(out, *p)
	}
	return out
}
