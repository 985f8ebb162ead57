// SPDX-License-Identifier: MIT

// Package fetch resolves a source URL to a local media file. Downloads
// are cached per URL, deduplicated across concurrent callers, rate
// limited, and retried with a format fallback before giving up.
package fetch

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/metrics"
)

// Result identifies a fetched source file.
type Result struct {
	LocalPath string
	Title     string
	SourceID  string
}

// Downloader performs one download attempt with a concrete format
// selector. Implemented by the yt-dlp adapter; replaceable in tests.
type Downloader interface {
	Download(ctx context.Context, rawURL, format, outDir string) (Result, error)
}

// maxAttempts bounds the retry loop across all format selectors.
const maxAttempts = 10

// formatSelectors are tried in order; later entries trade quality for
// compatibility.
var formatSelectors = []string{
	"best[height<=1080]/best",
	"best",
}

// allowedHosts are the source hosts create accepts.
var allowedHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// ValidateURL rejects URLs that are not plain http(s) links to an
// accepted host.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errkind.Wrap(errkind.KindInvalidInput, err, "parse source URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errkind.New(errkind.KindInvalidInput, "unsupported URL scheme %q", u.Scheme)
	}
	if !allowedHosts[strings.ToLower(u.Hostname())] {
		return errkind.New(errkind.KindInvalidInput, "unsupported source host %q", u.Hostname())
	}
	return nil
}

// Acquirer resolves URLs to local files.
type Acquirer struct {
	downloadsDir string
	cache        *Cache
	downloader   Downloader
	limiter      *rate.Limiter
	group        singleflight.Group
	retryBase    time.Duration
}

// NewAcquirer builds an Acquirer over downloadsDir. A nil downloader
// gets the yt-dlp default.
func NewAcquirer(downloadsDir string, downloader Downloader) *Acquirer {
	if downloader == nil {
		downloader = &ytdlpDownloader{}
	}
	return &Acquirer{
		downloadsDir: downloadsDir,
		cache:        OpenCache(filepath.Join(downloadsDir, "video_cache.json")),
		downloader:   downloader,
		limiter:      rate.NewLimiter(rate.Every(2*time.Second), 2),
		retryBase:    500 * time.Millisecond,
	}
}

// Acquire returns the local file for a URL, downloading it on first
// use. Concurrent calls for the same URL share one download.
func (a *Acquirer) Acquire(ctx context.Context, rawURL string) (Result, error) {
	if err := ValidateURL(rawURL); err != nil {
		return Result{}, err
	}

	v, err, _ := a.group.Do(URLHash(rawURL), func() (interface{}, error) {
		return a.acquireLocked(ctx, rawURL)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (a *Acquirer) acquireLocked(ctx context.Context, rawURL string) (Result, error) {
	logger := log.WithComponentFromContext(ctx, "fetch")

	if res, ok := a.cache.Lookup(rawURL); ok {
		logger.Debug().Str("path", res.LocalPath).Msg("download cache hit")
		return res, nil
	}

	if err := os.MkdirAll(a.downloadsDir, 0o755); err != nil {
		return Result{}, errkind.Wrap(errkind.KindIO, err, "create downloads dir")
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return Result{}, errkind.Wrap(errkind.KindFetch, err, "rate limit wait")
	}

	var lastErr error
	backoff := a.retryBase
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.FetchRetriesTotal.Inc()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Result{}, errkind.Wrap(errkind.KindFetch, ctx.Err(), "fetch canceled")
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}

		format := formatSelectors[0]
		if attempt > 1 {
			format = formatSelectors[min(attempt-1, len(formatSelectors)-1)]
		}

		res, err := a.downloader.Download(ctx, rawURL, format, a.downloadsDir)
		if err != nil {
			lastErr = err
			logger.Warn().Err(err).Int("attempt", attempt).Str("format", format).Msg("download attempt failed")
			continue
		}

		if err := a.cache.Put(rawURL, res); err != nil {
			logger.Warn().Err(err).Msg("download cache write failed")
		}
		logger.Info().Str("path", res.LocalPath).Str("title", res.Title).Int("attempt", attempt).Msg("source fetched")
		return res, nil
	}

	return Result{}, errkind.Wrap(errkind.KindFetch, lastErr, "all download attempts exhausted")
}

// ytdlpDownloader shells out to yt-dlp.
type ytdlpDownloader struct{}

func (d *ytdlpDownloader) Download(ctx context.Context, rawURL, format, outDir string) (Result, error) {
	dl := ytdlp.New().
		Format(format).
		Output(filepath.Join(outDir, "%(id)s.%(ext)s")).
		NoPlaylist().
		RestrictFilenames().
		PrintJSON()

	run, err := dl.Run(ctx, rawURL)
	if err != nil {
		return Result{}, errkind.Wrap(errkind.KindFetch, err, "yt-dlp run")
	}

	infos, err := run.GetExtractedInfo()
	if err != nil || len(infos) == 0 {
		return Result{}, errkind.Wrap(errkind.KindFetch, err, "yt-dlp extracted info")
	}
	info := infos[0]

	title := ""
	if info.Title != nil {
		title = *info.Title
	}

	path, err := locateDownload(outDir, info.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{LocalPath: path, Title: title, SourceID: info.ID}, nil
}

// locateDownload finds the file yt-dlp wrote for a video id; the
// extension depends on the negotiated format.
func locateDownload(dir, id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, id+".*"))
	if err != nil || len(matches) == 0 {
		return "", errkind.New(errkind.KindFetch, "downloaded file for %s not found", id)
	}
	for _, m := range matches {
		if !strings.HasSuffix(m, ".json") && !strings.HasSuffix(m, ".part") {
			return m, nil
		}
	}
	return "", errkind.New(errkind.KindFetch, "downloaded media for %s not found", id)
}
