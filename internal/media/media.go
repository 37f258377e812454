// Package media wraps the external tools the uploader shells out to:
// ffprobe for stream inspection, yt-dlp for downloads and ffmpeg for
// trimming and thumbnail extraction. Every call is a single blocking unit
// awaited to completion.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// runCommand executes an external tool and returns its combined output.
type runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FormatTimestamp renders a duration as an HH:MM:SS timestamp accepted by
// ffmpeg seek arguments.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
