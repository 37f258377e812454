package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Probe inspects media files with ffprobe.
type Probe struct {
	run runCommand
}

// NewProbe creates a probe using the ffprobe binary on PATH.
func NewProbe() *Probe {
	return &Probe{run: defaultRun}
}

// Resolution returns the video resolution as "WxH", e.g. "1920x1080".
func (p *Probe) Resolution(ctx context.Context, path string) (string, error) {
	out, err := p.run(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)
	if err != nil {
		return "", fmt.Errorf("ffprobe resolution: %w", err)
	}
	res := strings.TrimSpace(string(out))
	if res == "" {
		return "", fmt.Errorf("no video stream in %s", path)
	}
	return res, nil
}

// Duration returns the container duration.
func (p *Probe) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := p.run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
