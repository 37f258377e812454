package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Transcoder performs the two ffmpeg operations the uploader needs: trimming
// a video to an end timestamp and extracting a single thumbnail frame.
type Transcoder struct {
	run runCommand
}

// NewTranscoder creates a transcoder using the ffmpeg binary on PATH.
func NewTranscoder() *Transcoder {
	return &Transcoder{run: defaultRun}
}

// TrimTo cuts the video at path down to the given end timestamp, replacing
// the file in place. Streams are copied, not re-encoded.
func (t *Transcoder) TrimTo(ctx context.Context, path, end string) error {
	tmp := path + ".trim.tmp.mp4"
	out, err := t.run(ctx, "ffmpeg",
		"-y",
		"-i", path,
		"-t", end,
		"-c", "copy",
		tmp,
	)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg trim: %w: %s", err, out)
	}
	return os.Rename(tmp, path)
}

// ExtractFrame grabs one frame at the given timestamp and returns the path
// of the resulting jpg, placed next to the video.
func (t *Transcoder) ExtractFrame(ctx context.Context, path, ts string) (string, error) {
	dest := strings.TrimSuffix(path, filepath.Ext(path)) + ".thumb.jpg"
	out, err := t.run(ctx, "ffmpeg",
		"-y",
		"-ss", ts,
		"-i", path,
		"-frames:v", "1",
		dest,
	)
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("ffmpeg thumbnail: %w: %s", err, out)
	}
	return dest, nil
}
