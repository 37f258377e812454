// Package manifest parses the uploader's input list of video jobs.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var urlRe = regexp.MustCompile(`(?i)^https?://`)

// Entry is one video job. Optional fields are empty strings when absent.
// Entries are immutable once parsed and never reference each other.
type Entry struct {
	URL     string
	Title   string
	ThumbTS string // thumbnail timestamp, e.g. "00:00:05"
	TrimEnd string // trim end timestamp, e.g. "00:01:00"
}

// Parse reads comma-delimited lines of the form
// URL[, title[, thumb_timestamp[, trim_end]]]. Lines whose first field is not
// an http(s) URL are dropped.
func Parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var entries []Entry
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		url := strings.TrimSpace(row[0])
		if !urlRe.MatchString(url) {
			continue
		}

		entries = append(entries, Entry{
			URL:     url,
			Title:   field(row, 1),
			ThumbTS: field(row, 2),
			TrimEnd: field(row, 3),
		})
	}
	return entries, nil
}

// ParseFile parses the manifest at path.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func field(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
