// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package jobqueue serializes download submission behind a single worker,
// grounded on the teacher's internal/server.JobManager (channel/map-based
// job bookkeeping with a background goroutine per job) but restructured
// around one unbounded queue, one dequeuing worker, and explicit
// queue_count/queue_bytes counters instead of a map of independently
// started goroutines.
package jobqueue

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"hubdl/internal/downloader"
)

// Status is the terminal or in-flight state of a queued job.
type Status string

const (
	StatusQueued    Status = "Queued"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Outcome is published to the status channel once a job leaves the worker,
// successfully or not.
type Outcome struct {
	Request downloader.Request
	Status  Status
	Err     error
}

// job is an internal queue entry pairing the request with the size the
// caller supplied at enqueue time, so queue_bytes can be decremented
// exactly without re-probing the remote file.
type job struct {
	request   downloader.Request
	sizeBytes int64
}

// Downloader is the minimal surface JobQueue needs, satisfied by
// *downloader.Downloader; kept as an interface so tests can substitute a
// fake worker without standing up a real HTTP server.
type Downloader interface {
	Download(ctx context.Context, req downloader.Request) error
}

// JobQueue is an unbounded FIFO of DownloadRequests drained by a single
// background worker. The unbounded queue is realized as a mutex-guarded
// slice plus a condition variable, since a buffered Go channel would need
// a fixed capacity; semantics (FIFO order, blocking dequeue) are identical
// to an unbounded channel.
type JobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buffer []job
	closed bool

	queueCount atomic.Int64
	queueBytes atomic.Int64

	downloader Downloader
	onOutcome  func(Outcome)
}

// New constructs a JobQueue backed by dl. onOutcome, if non-nil, is called
// once per job after the worker invokes Download, from the worker's own
// goroutine — it must return quickly.
func New(dl Downloader, onOutcome func(Outcome)) *JobQueue {
	q := &JobQueue{downloader: dl, onOutcome: onOutcome}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends req to the queue and increments queue_count/queue_bytes.
// sizeHint is the file's expected total size (0 if unknown), used only for
// the queue_bytes/ETA accounting — it has no effect on the download itself.
func (q *JobQueue) Enqueue(req downloader.Request, sizeHint int64) {
	q.mu.Lock()
	q.buffer = append(q.buffer, job{request: req, sizeBytes: sizeHint})
	q.mu.Unlock()
	q.queueCount.Add(1)
	q.queueBytes.Add(sizeHint)
	q.cond.Signal()
}

// QueueCount returns the number of jobs currently waiting or running.
func (q *JobQueue) QueueCount() int64 { return q.queueCount.Load() }

// QueueBytes returns the total size hint of jobs currently waiting or running.
func (q *JobQueue) QueueBytes() int64 { return q.queueBytes.Load() }

// Run starts the single dequeue worker and blocks until ctx is cancelled
// or Close is called. Jobs already in the buffer when ctx is cancelled are
// left queued, matching the "temp files are left in place" posture for
// in-flight cancellation elsewhere in the downloader.
func (q *JobQueue) Run(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		<-ctx.Done()
		q.Close()
		close(stopped)
	}()

	for {
		j, ok := q.dequeue()
		if !ok {
			return
		}

		err := q.downloader.Download(ctx, j.request)
		q.queueCount.Add(-1)
		q.queueBytes.Add(-j.sizeBytes)

		status := StatusCompleted
		if err != nil {
			status = StatusFailed
		}
		if q.onOutcome != nil {
			q.onOutcome(Outcome{Request: j.request, Status: status, Err: err})
		}
	}
}

// dequeue blocks until a job is available or the queue is closed.
func (q *JobQueue) dequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buffer) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed || len(q.buffer) == 0 {
		return job{}, false
	}
	j := q.buffer[0]
	q.buffer = q.buffer[1:]
	return j, true
}

// Close stops the worker once its current job (if any) returns; jobs still
// in the buffer are not processed. Close wakes a blocked dequeue immediately
// so Run can observe ctx cancellation without waiting for the next Enqueue.
func (q *JobQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// ETAMinutes computes the aggregate ETA: (total - downloaded + queueBytes)
// / speed, rounded up to whole minutes. ok is false when speed <= 0, in
// which case the ETA is omitted rather than shown as infinite or zero.
func ETAMinutes(total, downloaded, queueBytes int64, speedBPS float64) (minutes int64, ok bool) {
	if speedBPS <= 0 {
		return 0, false
	}
	remaining := float64(total-downloaded+queueBytes) / speedBPS
	return int64(math.Ceil(remaining / 60)), true
}
