package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// FetchResult is one download of the feed.
type FetchResult struct {
	Body      []byte
	FromCache bool // the cached body was reused (304, network or HTTP error)
	Hash      string
}

type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Hash         string    `json:"hash"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads the CSV feed with conditional requests and keeps the
// last good body on disk.
type Fetcher struct {
	client   *http.Client
	url      string
	cacheDir string
}

func NewFetcher(feedURL string, cacheDir string) (*Fetcher, error) {
	if _, err := url.ParseRequestURI(feedURL); err != nil {
		return nil, fmt.Errorf("NewFetcher: feed url is invalid: %w", err)
	}
	if cacheDir == "" {
		return nil, fmt.Errorf("NewFetcher: cache dir is blank")
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		url:      feedURL,
		cacheDir: cacheDir,
	}, nil
}

func (f *Fetcher) URL() string {
	return f.url
}

// Fetch downloads the feed. On network errors or non-OK statuses a cached
// body is returned when one exists.
func (f *Fetcher) Fetch(ctx context.Context) (FetchResult, error) {
	cachePath := f.cachePath()
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, fmt.Errorf("(*Fetcher).Fetch: %w", err)
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body.csv"))
	fromCache := func(reason string, err error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, fmt.Errorf("(*Fetcher).Fetch: %w", err)
		}
		slog.Warn("feed fetch failed, using cached body", "reason", reason, "error", err)
		return FetchResult{Body: cachedBody, FromCache: true, Hash: ContentHash(cachedBody)}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("(*Fetcher).Fetch: %w", err)
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fromCache("network", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fromCache("read", err)
		}
		hash := ContentHash(body)
		if hash == meta.Hash {
			slog.Debug("feed content unchanged", "hash", hash)
		}
		if err := saveCache(cachePath, cacheEntry{
			URL:          f.url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Hash:         hash,
		}, body); err != nil {
			slog.Warn("feed cache save failed", "error", err)
		}
		slog.Info("feed fetched", "bytes", len(body), "hash", hash)
		return FetchResult{Body: body, Hash: hash}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("(*Fetcher).Fetch: 304 Not Modified but no cached body")
		}
		slog.Debug("feed not modified, using cache")
		return FetchResult{Body: cachedBody, FromCache: true, Hash: ContentHash(cachedBody)}, nil

	default:
		return fromCache("status", errors.New(resp.Status))
	}
}

func (f *Fetcher) cachePath() string {
	sum := sha256.Sum256([]byte(f.url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

// ContentHash is the hex sha256 of a feed body.
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// body first so meta never points at a missing body
	if err := os.WriteFile(filepath.Join(cachePath, "body.csv"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}
