package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/chatvault/chatvault/internal/logger"
)

// Downloader fetches videos with yt-dlp, falling back to a direct streamed
// HTTP download when yt-dlp gives up (odd .php links and the like).
type Downloader struct {
	dir        string
	run        runCommand
	client     *http.Client
	maxElapsed time.Duration
	log        *logger.Logger
}

// NewDownloader creates a downloader writing into dir.
func NewDownloader(dir string) *Downloader {
	return &Downloader{
		dir:        dir,
		run:        defaultRun,
		client:     &http.Client{},
		maxElapsed: 90 * time.Second,
		log:        logger.Get(),
	}
}

// Download fetches url and returns the local file path. The primary yt-dlp
// path is retried with exponential backoff; once it is exhausted the direct
// HTTP fallback gets one attempt.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir download dir: %w", err)
	}

	out := filepath.Join(d.dir, uuid.New().String()+".mp4")
	attempt := func() error {
		d.log.Info().Str("url", url).Msg("media: downloading with yt-dlp")
		cmdOut, err := d.run(ctx, "yt-dlp",
			"--continue",
			"--force-generic-extractor",
			"-f", "bestvideo+bestaudio/best",
			"--merge-output-format", "mp4",
			"--no-progress",
			"-o", out,
			url,
		)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("yt-dlp: %w: %s", err, cmdOut)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = d.maxElapsed
	err := backoff.Retry(attempt, backoff.WithContext(bo, ctx))
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	d.log.Warn().Err(err).Str("url", url).Msg("media: yt-dlp failed, falling back to direct download")
	return d.directDownload(ctx, url)
}

// directDownload streams url straight to disk.
func (d *Downloader) directDownload(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("direct download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("direct download: unexpected status %s", resp.Status)
	}

	dest := filepath.Join(d.dir, uuid.New().String()+".mp4")
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}

	counter := &progressWriter{total: resp.ContentLength, log: d.log}
	if _, err := io.Copy(io.MultiWriter(f, counter), resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("stream download: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return "", err
	}
	d.log.Info().Str("path", dest).Int64("bytes", counter.written).Msg("media: direct download complete")
	return dest, nil
}

// progressWriter logs download progress roughly every ten percent.
type progressWriter struct {
	total    int64
	written  int64
	lastDeci int64
	log      *logger.Logger
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		if deci := w.written * 10 / w.total; deci > w.lastDeci {
			w.lastDeci = deci
			w.log.Debug().Int64("pct", deci*10).Int64("bytes", w.written).Msg("media: downloading")
		}
	}
	return len(p), nil
}
