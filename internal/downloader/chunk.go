// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/ewma"

	"hubdl/internal/coreopts"
	"hubdl/internal/hubclient"
	"hubdl/internal/hubdlerr"
	"hubdl/internal/ratelimit"
)

// readChunkSize is the read granularity within a chunk worker: the
// response body streams in 8 KiB reads.
const readChunkSize = 8 * 1024

// chunkState is the live, mutable state of one in-flight chunk, guarded by
// its own mutex so the aggregator can read it without stalling the worker.
type chunkState struct {
	mu         sync.Mutex
	downloaded int64
	speed      ewma.MovingAverage
	lastSample time.Time
}

func newChunkState() *chunkState {
	return &chunkState{speed: ewma.NewMovingAverage(), lastSample: time.Now()}
}

func (c *chunkState) snapshot() (downloaded int64, speedBPS float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloaded, c.speed.Value()
}

func (c *chunkState) reset() {
	c.mu.Lock()
	c.downloaded = 0
	c.mu.Unlock()
}

// recordRead folds n bytes read over dt into the rolling EWMA. Each read is
// one sample (n/dt); reads are not grouped into minimum-length windows.
func (c *chunkState) recordRead(n int64, dt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloaded += n
	if dt <= 0 {
		return
	}
	c.speed.Add(float64(n) / dt.Seconds())
}

// chunkWorker downloads one byte range into the preallocated temp file,
// retrying transient failures with full-jitter backoff and re-seeking on
// every retry: the chunk's downloaded counter and file-write position both
// reset to the chunk's own start on a retried attempt, rather than
// resuming where the previous attempt left off.
type chunkWorker struct {
	client  *hubclient.Client
	limiter *ratelimit.Limiter
	url     string
	token   string
	file    *os.File
	plan    chunkPlan
	state   *chunkState
	opts    coreopts.Snapshot
}

// run executes the chunk's retry loop to completion, or returns a
// terminal error when retries are exhausted or the context is cancelled.
func (w *chunkWorker) run(ctx context.Context) error {
	b := newBackoff(w.opts.RetryDelay, 30*time.Second)
	maxRetries := w.opts.MaxRetries

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return hubdlerr.Cancelled()
		default:
		}

		w.state.reset()
		err := w.attempt(ctx)
		if err == nil {
			return nil
		}

		e, ok := hubdlerr.As(err)
		if !ok || !e.Kind.IsTransient() {
			return err
		}
		if attempt >= maxRetries {
			return err
		}
		if !sleepCtx(ctx.Done(), b.Next()) {
			return hubdlerr.Cancelled()
		}
	}
}

// attempt performs exactly one GET+stream pass over the chunk's range,
// writing from the chunk's own start onward.
func (w *chunkWorker) attempt(ctx context.Context) error {
	resp, err := w.client.RangeGet(ctx, w.url, w.token, w.plan.start, w.plan.end)
	if err != nil {
		return hubdlerr.Timeout(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 && resp.StatusCode != 206 {
		return hubdlerr.FromHTTPStatus(resp.StatusCode, w.url)
	}

	want := w.plan.end - w.plan.start + 1
	writeOffset := w.plan.start
	buf := make([]byte, readChunkSize)

	for {
		select {
		case <-ctx.Done():
			return hubdlerr.Cancelled()
		default:
		}

		start := time.Now()
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if w.limiter != nil {
				if err := w.limiter.Acquire(ctx, int64(n)); err != nil {
					return hubdlerr.Cancelled()
				}
			}
			if _, err := w.file.WriteAt(buf[:n], writeOffset); err != nil {
				return hubdlerr.IO(err)
			}
			writeOffset += int64(n)
			w.state.recordRead(int64(n), time.Since(start))
		}

		if readErr == io.EOF {
			downloaded, _ := w.state.snapshot()
			if downloaded != want {
				return hubdlerr.IO(io.ErrUnexpectedEOF)
			}
			return nil
		}
		if readErr != nil {
			return hubdlerr.IO(readErr)
		}
	}
}

// aggregateProgress sums per-chunk counters into a Progress snapshot.
// Totals are summed from chunk counters; no monotonicity beyond each
// chunk's own increments is promised.
func aggregateProgress(filename string, total int64, plans []chunkPlan, states []*chunkState) Progress {
	p := Progress{Filename: filename, Total: total, Time: time.Now()}
	var totalSpeed float64
	for i, plan := range plans {
		downloaded, speed := states[i].snapshot()
		p.Downloaded += downloaded
		totalSpeed += speed
		p.Chunks = append(p.Chunks, ChunkProgress{
			ID:         plan.id,
			Start:      plan.start,
			End:        plan.end,
			Downloaded: downloaded,
			SpeedBPS:   speed,
		})
	}
	p.SpeedBPS = totalSpeed
	return p
}

// atomicErr is a small helper for capturing the first error across a
// goroutine fan-out without an extra channel.
type atomicErr struct {
	v atomic.Value
}

func (a *atomicErr) store(err error) {
	if err == nil {
		return
	}
	a.v.CompareAndSwap(nil, err)
}

func (a *atomicErr) load() error {
	v := a.v.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}
