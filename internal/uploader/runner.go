// Package uploader drives the batch video pipeline: for each manifest entry
// it downloads the video, optionally trims it, extracts a thumbnail, uploads
// the result to the destination channel and records the outcome in the run
// log. Entries run one at a time and a failing entry never stops the run.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"github.com/chatvault/chatvault/internal/logger"
	"github.com/chatvault/chatvault/internal/manifest"
	"github.com/chatvault/chatvault/internal/media"
	"github.com/chatvault/chatvault/internal/telegram"
)

// VideoSender uploads a local video file to a peer.
type VideoSender interface {
	SendVideo(ctx context.Context, peer tg.InputPeerClass, path, caption, thumbPath string, progress telegram.ProgressFunc) error
}

// Downloader fetches a remote video and returns its local path.
type Downloader interface {
	Download(ctx context.Context, url string) (string, error)
}

// Prober inspects a downloaded file.
type Prober interface {
	Resolution(ctx context.Context, path string) (string, error)
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Transcoder trims videos and extracts thumbnail frames.
type Transcoder interface {
	TrimTo(ctx context.Context, path, end string) error
	ExtractFrame(ctx context.Context, path, ts string) (string, error)
}

// JobOutcomeEvent mirrors one run-log line for downstream consumers.
type JobOutcomeEvent struct {
	Status string    `json:"status"`
	URL    string    `json:"url"`
	Title  string    `json:"title"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// OutcomePublisher receives an event per finished job. A nil publisher
// disables events.
type OutcomePublisher interface {
	PublishJobOutcome(ctx context.Context, ev JobOutcomeEvent) error
}

// Runner executes manifest entries sequentially.
type Runner struct {
	sender     VideoSender
	dest       tg.InputPeerClass
	downloader Downloader
	probe      Prober
	transcoder Transcoder
	runLog     *RunLog
	pub        OutcomePublisher
	jobTimeout time.Duration
	now        func() time.Time
	log        *logger.Logger
}

// NewRunner wires a runner for the given destination peer.
func NewRunner(sender VideoSender, dest tg.InputPeerClass, dl Downloader, probe Prober, tx Transcoder, runLog *RunLog, pub OutcomePublisher, jobTimeout time.Duration) *Runner {
	return &Runner{
		sender:     sender,
		dest:       dest,
		downloader: dl,
		probe:      probe,
		transcoder: tx,
		runLog:     runLog,
		pub:        pub,
		jobTimeout: jobTimeout,
		now:        time.Now,
		log:        logger.Get(),
	}
}

// Run processes every entry. Only context cancellation stops the run early;
// per-entry failures are recorded and the next entry proceeds.
func (r *Runner) Run(ctx context.Context, entries []manifest.Entry) error {
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.log.Info().
			Int("job", i+1).
			Int("total", len(entries)).
			Str("url", entry.URL).
			Msg("uploader: starting job")
		status, detail := r.runJob(ctx, entry)
		if err := r.runLog.Record(status, entry.URL, entry.Title, detail); err != nil {
			r.log.Error().Err(err).Msg("uploader: run log write failed")
		}
		r.publishOutcome(ctx, status, entry, detail)
	}
	return nil
}

// runJob runs a single entry under the job timeout and returns its outcome.
func (r *Runner) runJob(ctx context.Context, entry manifest.Entry) (Status, string) {
	jobCtx, cancel := context.WithTimeout(ctx, r.jobTimeout)
	defer cancel()

	path, err := r.downloader.Download(jobCtx, entry.URL)
	if err != nil {
		return r.classify(jobCtx, "download", err)
	}
	thumb := ""
	defer func() {
		// artifacts go regardless of outcome
		os.Remove(path)
		if thumb != "" {
			os.Remove(thumb)
		}
	}()

	if entry.TrimEnd != "" {
		if err := r.transcoder.TrimTo(jobCtx, path, entry.TrimEnd); err != nil {
			return r.classify(jobCtx, "trim", err)
		}
	}

	thumb = r.makeThumbnail(jobCtx, path, entry.ThumbTS)
	caption := r.buildCaption(jobCtx, path, entry.Title)

	progress := uploadProgress(r.log)
	if err := r.sender.SendVideo(jobCtx, r.dest, path, caption, thumb, progress); err != nil {
		return r.classify(jobCtx, "upload", err)
	}
	r.log.Info().Str("url", entry.URL).Msg("uploader: job succeeded")
	return StatusSuccess, ""
}

// classify maps a job error to its run-log status. A deadline hit anywhere in
// the job counts as a timeout.
func (r *Runner) classify(jobCtx context.Context, stage string, err error) (Status, string) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		r.log.Warn().Str("stage", stage).Msg("uploader: job timed out")
		return StatusTimeout, ""
	}
	r.log.Error().Err(err).Str("stage", stage).Msg("uploader: job failed")
	return StatusFailed, fmt.Sprintf("%s: %v", stage, err)
}

// makeThumbnail extracts a frame at the requested timestamp, or at the
// probed midpoint when the manifest gave none. Thumbnail trouble never
// fails the job.
func (r *Runner) makeThumbnail(ctx context.Context, path, ts string) string {
	if ts == "" {
		dur, err := r.probe.Duration(ctx, path)
		if err != nil {
			r.log.Warn().Err(err).Msg("uploader: duration probe failed, skipping thumbnail")
			return ""
		}
		ts = media.FormatTimestamp(dur / 2)
	}
	thumb, err := r.transcoder.ExtractFrame(ctx, path, ts)
	if err != nil {
		r.log.Warn().Err(err).Msg("uploader: thumbnail extraction failed")
		return ""
	}
	return thumb
}

// buildCaption composes the upload caption from the file and probe data.
func (r *Runner) buildCaption(ctx context.Context, path, title string) string {
	var sizeMB float64
	if info, err := os.Stat(path); err == nil {
		sizeMB = float64(info.Size()) / 1048576
	}
	res, err := r.probe.Resolution(ctx, path)
	if err != nil || res == "" {
		res = "—"
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var parts []string
	if title != "" {
		parts = append(parts, "📺 "+title)
	}
	parts = append(parts,
		"Name: "+name,
		fmt.Sprintf("Size: %.1f MB", sizeMB),
		"Resolution: "+res,
		"Uploaded: "+r.now().Format("02 Jan 2006"),
	)
	return strings.Join(parts, "\n")
}

func (r *Runner) publishOutcome(ctx context.Context, status Status, entry manifest.Entry, detail string) {
	if r.pub == nil {
		return
	}
	ev := JobOutcomeEvent{
		Status: string(status),
		URL:    entry.URL,
		Title:  entry.Title,
		Detail: detail,
		At:     r.now().UTC(),
	}
	if err := r.pub.PublishJobOutcome(ctx, ev); err != nil {
		r.log.Warn().Err(err).Msg("uploader: outcome publish failed")
	}
}

// uploadProgress returns a callback logging upload progress every ten percent.
func uploadProgress(log *logger.Logger) telegram.ProgressFunc {
	var lastDeci int64
	return func(uploaded, total int64) {
		if total <= 0 {
			return
		}
		if deci := uploaded * 10 / total; deci > lastDeci {
			lastDeci = deci
			log.Debug().Int64("pct", deci*10).Int64("bytes", uploaded).Msg("uploader: uploading")
		}
	}
}
