package uploader

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status is the outcome recorded for a single manifest entry.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusTimeout Status = "TIMEOUT"
	StatusFailed  Status = "FAILED"
)

const runLogLayout = "150405_02012006"

// RunLog is the per-run CSV-ish log, one line per manifest entry. Lines are
// flushed as soon as they are written so a crashed run still shows what
// happened.
type RunLog struct {
	file *os.File
	path string
}

// OpenRunLog creates LOG_DIR/output_<HHMMSS_DDMMYYYY>.txt for this run.
func OpenRunLog(dir string, now time.Time) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir run log dir: %w", err)
	}
	path := filepath.Join(dir, "output_"+now.Format(runLogLayout)+".txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return &RunLog{file: f, path: path}, nil
}

// Path returns the log file location.
func (l *RunLog) Path() string { return l.path }

// Record appends one outcome line. Detail is only written when present.
func (l *RunLog) Record(status Status, url, title, detail string) error {
	line := fmt.Sprintf("%s,%s,%s", status, url, title)
	if detail != "" {
		line += "," + detail
	}
	if _, err := l.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write run log: %w", err)
	}
	return l.file.Sync()
}

func (l *RunLog) Close() error { return l.file.Close() }
