// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"hubdl/internal/coreopts"
	"hubdl/internal/hubclient"
	"hubdl/internal/hubdlerr"
)

// probeResult carries what the planning phase learned about the remote
// file before any chunk work begins.
type probeResult struct {
	total   int64
	url     string
	usedRaw bool
}

// probeSize issues a GET with Range: bytes=0-0 to learn Content-Length /
// Content-Range without downloading the body. On 404 it retries against
// the alternate /raw/ endpoint.
func probeSize(ctx context.Context, client *hubclient.Client, resolveURL, rawURL, token string) (probeResult, error) {
	for _, candidate := range []struct {
		url   string
		isRaw bool
	}{{resolveURL, false}, {rawURL, true}} {
		resp, err := client.RangeGet(ctx, candidate.url, token, 0, 0)
		if err != nil {
			return probeResult{}, hubdlerr.IO(err)
		}
		status := resp.StatusCode
		resp.Body.Close()

		if status == 404 {
			continue // try the raw fallback
		}
		if status != 200 && status != 206 {
			return probeResult{}, hubdlerr.FromHTTPStatus(status, candidate.url)
		}

		total, err := totalSizeFromHeaders(resp)
		if err != nil {
			return probeResult{}, hubdlerr.Malformed(err)
		}
		return probeResult{total: total, url: candidate.url, usedRaw: candidate.isRaw}, nil
	}
	return probeResult{}, hubdlerr.FromHTTPStatus(404, resolveURL)
}

func totalSizeFromHeaders(resp *http.Response) (int64, error) {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if idx := strings.LastIndex(cr, "/"); idx >= 0 && idx+1 < len(cr) {
			if n, err := strconv.ParseInt(cr[idx+1:], 10, 64); err == nil {
				return n, nil
			}
		}
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("response carried no usable Content-Length/Content-Range")
}

// resumeOffset determines the resume offset: the existing temp file's size
// if it exists and is <= total, else 0 (with the temp file truncated to 0
// in that else branch).
func resumeOffset(tempPath string, total int64) (int64, error) {
	info, err := os.Stat(tempPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, hubdlerr.IO(err)
	}
	if info.Size() <= total {
		return info.Size(), nil
	}
	if err := os.Truncate(tempPath, 0); err != nil {
		return 0, hubdlerr.IO(err)
	}
	return 0, nil
}

// preallocate ensures the temp file exists and is (at least) total bytes,
// sparse-allocated where the platform supports it.
func preallocate(tempPath string, total int64) error {
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return hubdlerr.IO(err)
	}
	defer f.Close()
	if err := f.Truncate(total); err != nil {
		return hubdlerr.IO(err)
	}
	return nil
}

// buildChunkPlan computes the chunk list covering [resumeFrom, total):
// chunk_size = clamp(total/target_chunks, MIN, MAX); the final chunk
// absorbs any remainder. chunk_size is derived from total rather than the
// remaining bytes so a resumed download lands on the same chunk
// boundaries a fresh download of the same file would.
func buildChunkPlan(resumeFrom, total int64, opts coreopts.Snapshot) []chunkPlan {
	remaining := total - resumeFrom
	if remaining <= 0 {
		return nil
	}

	targetChunks := opts.TargetChunks
	if targetChunks <= 0 {
		targetChunks = coreopts.DefaultTargetChunks
	}
	chunkSize := total / int64(targetChunks)
	chunkSize = clamp(chunkSize, opts.MinChunkBytes, opts.MaxChunkBytes)
	if chunkSize <= 0 {
		chunkSize = remaining
	}

	var plans []chunkPlan
	id := 0
	start := resumeFrom
	for start < total {
		end := start + chunkSize - 1
		if end >= total-1 {
			end = total - 1
		}
		plans = append(plans, chunkPlan{id: id, start: start, end: end})
		id++
		start = end + 1
	}
	return plans
}

func clamp(v, lo, hi int64) int64 {
	if lo > 0 && v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
