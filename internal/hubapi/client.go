// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hubdl/internal/hubclient"
	"hubdl/internal/hubdlerr"
)

// apiNode mirrors one entry of the hub's tree API response.
type apiNode struct {
	Type string `json:"type"` // "file" | "directory"
	Path string `json:"path"`
	Size int64  `json:"size"`
	LFS  *struct {
		OID    string `json:"oid"`
		Size   int64  `json:"size"`
		SHA256 string `json:"sha256"`
	} `json:"lfs"`
}

// apiModelResponse mirrors the hub's /api/models/{id} response shape.
type apiModelResponse struct {
	ID    string `json:"id"`
	Gated any    `json:"gated"` // bool or string ("auto"|"manual")
	Tags  []string `json:"tags"`
}

// apiSearchRow mirrors one /api/models search result row.
type apiSearchRow struct {
	ID           string   `json:"id"`
	Downloads    uint64   `json:"downloads"`
	Likes        uint64   `json:"likes"`
	LastModified string   `json:"lastModified"`
	Gated        any      `json:"gated"`
	Tags         []string `json:"tags"`
}

// maxTreeDepth caps the recursive directory walk, hardening the teacher's
// unbounded walkTree recursion against a pathologically deep or cyclic tree.
const maxTreeDepth = 10

// Client resolves model identifiers into concrete file sets via the hub
// API, pacing outbound requests with golang.org/x/time/rate — a distinct
// concern from internal/ratelimit's byte-level transfer throttle.
type Client struct {
	http     *hubclient.Client
	endpoint string
	limiter  *rate.Limiter
	cache    *Cache
}

// NewClient builds a Client. requestsPerSecond paces API calls (not byte
// transfer); endpoint overrides DefaultEndpoint when non-empty.
func NewClient(h *hubclient.Client, endpoint string, requestsPerSecond float64) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		http:     h,
		endpoint: endpoint,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		cache:    NewCache(),
	}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return hubdlerr.Cancelled()
	}
	return nil
}

// Search issues a search query and applies client-side filtering/sorting
// for everything the remote API cannot do directly.
func (c *Client) Search(ctx context.Context, query string, sortField SortField, direction SortDirection, minDownloads, minLikes uint64, token string) ([]ModelInfo, error) {
	if cached, ok := c.cache.GetSearch(query, sortField, direction, minDownloads, minLikes); ok {
		return cached, nil
	}

	remoteSortField := remoteSortFieldName(sortField)
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.http.Get(ctx, searchURL(c.endpoint, query, remoteSortField), token)
	if err != nil {
		return nil, hubdlerr.IO(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, hubdlerr.FromHTTPStatus(resp.StatusCode, searchURL(c.endpoint, query, remoteSortField))
	}

	var rows []apiSearchRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, hubdlerr.Malformed(err)
	}

	results := make([]ModelInfo, 0, len(rows))
	for _, r := range rows {
		lastMod, _ := time.Parse(time.RFC3339, r.LastModified)
		results = append(results, ModelInfo{
			ID:           r.ID,
			Downloads:    r.Downloads,
			Likes:        r.Likes,
			LastModified: lastMod,
			Gated:        gatedFromJSON(r.Gated),
			Tags:         r.Tags,
		})
	}

	// Exact-match rule: a query containing '/' that case-insensitively
	// equals a result's id short-circuits to that single result.
	if strings.Contains(query, "/") {
		for _, m := range results {
			if strings.EqualFold(m.ID, query) {
				results = []ModelInfo{m}
				break
			}
		}
	}

	results = filterByMinimums(results, minDownloads, minLikes)
	results = sortResults(results, sortField, direction)

	c.cache.PutSearch(query, sortField, direction, minDownloads, minLikes, results)
	return results, nil
}

func remoteSortFieldName(f SortField) string {
	switch f {
	case SortDownloads:
		return "downloads"
	case SortLikes:
		return "likes"
	case SortLastModified:
		return "lastModified"
	default:
		// Name has no remote-sortable equivalent; request the default
		// (downloads) and let the caller re-sort client-side.
		return "downloads"
	}
}

func filterByMinimums(in []ModelInfo, minDownloads, minLikes uint64) []ModelInfo {
	out := in[:0:0]
	for _, m := range in {
		if m.Downloads < minDownloads || m.Likes < minLikes {
			continue
		}
		out = append(out, m)
	}
	return out
}

func sortResults(in []ModelInfo, field SortField, dir SortDirection) []ModelInfo {
	less := func(i, j int) bool {
		switch field {
		case SortLikes:
			return in[i].Likes < in[j].Likes
		case SortLastModified:
			return in[i].LastModified.Before(in[j].LastModified)
		case SortName:
			return in[i].ID < in[j].ID
		default: // SortDownloads
			return in[i].Downloads < in[j].Downloads
		}
	}
	ascending := field == SortName || dir == DirAsc
	sort.SliceStable(in, func(i, j int) bool {
		if ascending {
			return less(i, j)
		}
		return less(j, i)
	})
	return in
}

func gatedFromJSON(v any) Gated {
	switch t := v.(type) {
	case bool:
		if t {
			return GatedTrue
		}
		return GatedFalse
	case string:
		switch t {
		case "auto":
			return GatedAuto
		case "manual":
			return GatedManual
		}
		return GatedFalse
	default:
		return GatedFalse
	}
}

// Metadata resolves a model id into its gating status, URL, and fully
// recursive file listing, walking every subdirectory up to maxTreeDepth.
func (c *Client) Metadata(ctx context.Context, modelID, revision, token string) (ModelMetadata, error) {
	if cached, ok := c.cache.GetMetadata(modelID); ok {
		return cached, nil
	}

	if err := c.wait(ctx); err != nil {
		return ModelMetadata{}, err
	}
	resp, err := c.http.Get(ctx, metadataURL(c.endpoint, modelID), token)
	if err != nil {
		return ModelMetadata{}, hubdlerr.IO(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return ModelMetadata{}, hubdlerr.FromHTTPStatus(resp.StatusCode, metadataURL(c.endpoint, modelID))
	}

	var m apiModelResponse
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return ModelMetadata{}, hubdlerr.Malformed(err)
	}

	gated := gatedFromJSON(m.Gated)
	modelURL := modelPageURL(c.endpoint, modelID)
	if gated.RequiresAuth() && token == "" {
		return ModelMetadata{}, hubdlerr.AuthRequired(modelURL)
	}

	files, err := c.walkTree(ctx, modelID, revision, "", token, 0)
	if err != nil {
		return ModelMetadata{}, err
	}

	meta := ModelMetadata{ID: modelID, Gated: gated, URL: modelURL, Siblings: files}
	c.cache.PutMetadata(modelID, meta)
	return meta, nil
}

// walkTree recursively walks the model's file tree, accumulating RepoFiles.
// Recursion is capped at maxTreeDepth; exceeding it is treated as a
// malformed/pathological tree rather than silently truncating results.
func (c *Client) walkTree(ctx context.Context, modelID, revision, prefix, token string, depth int) ([]RepoFile, error) {
	if depth > maxTreeDepth {
		return nil, hubdlerr.Malformed(fmt.Errorf("tree recursion exceeded depth %d at prefix %q", maxTreeDepth, prefix))
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	reqURL := treeURL(c.endpoint, modelID, revision, prefix)
	resp, err := c.http.Get(ctx, reqURL, token)
	if err != nil {
		return nil, hubdlerr.IO(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return nil, hubdlerr.AuthRequired(modelPageURL(c.endpoint, modelID))
	}
	if resp.StatusCode != 200 {
		return nil, hubdlerr.FromHTTPStatus(resp.StatusCode, reqURL)
	}

	var nodes []apiNode
	if err := json.NewDecoder(resp.Body).Decode(&nodes); err != nil {
		return nil, hubdlerr.Malformed(err)
	}

	var files []RepoFile
	for _, n := range nodes {
		if n.Type == "directory" {
			sub, err := c.walkTree(ctx, modelID, revision, n.Path, token, depth+1)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		rf := RepoFile{RFilename: n.Path}
		if n.Size > 0 {
			size := uint64(n.Size)
			rf.Size = &size
		}
		if n.LFS != nil && n.LFS.SHA256 != "" {
			sha := n.LFS.SHA256
			rf.LFSSHA256 = &sha
			size := uint64(n.LFS.Size)
			rf.Size = &size
		}
		files = append(files, rf)
	}
	return files, nil
}

// FetchHashes looks each filename up in the model's metadata listing (one
// Metadata call, served from cache when present) and returns its LFS sha256
// when the listing carries one, nil otherwise. No per-file request is made;
// a filename missing from the listing maps to nil.
func (c *Client) FetchHashes(ctx context.Context, modelID, revision string, filenames []string, token string) (map[string]*string, error) {
	out := make(map[string]*string, len(filenames))
	meta, err := c.Metadata(ctx, modelID, revision, token)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]RepoFile, len(meta.Siblings))
	for _, f := range meta.Siblings {
		byName[f.RFilename] = f
	}
	for _, fn := range filenames {
		if f, ok := byName[fn]; ok {
			out[fn] = f.LFSSHA256
		} else {
			out[fn] = nil
		}
	}
	return out, nil
}

// HasModelFiles reports whether any sibling ends in the content-format
// extension.
func HasModelFiles(meta ModelMetadata) bool {
	for _, f := range meta.Siblings {
		if strings.HasSuffix(strings.ToLower(f.RFilename), ContentFormatExtension) {
			return true
		}
	}
	return false
}

// ResolveURL returns the ranged-download URL for one file, per §6.1.
func (c *Client) ResolveURL(modelID, revision, path string) string {
	return resolveURL(c.endpoint, modelID, revision, path)
}

// RawURL returns the fallback raw-content URL used when resolve 404s.
func (c *Client) RawURL(modelID, revision, path string) string {
	return rawURL(c.endpoint, modelID, revision, path)
}
