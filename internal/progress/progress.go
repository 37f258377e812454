// Package progress persists the resume marker for a backup run.
package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Marker is the durable checkpoint of a backup run. LastMessageID is the id of
// the last message confirmed forwarded; it never decreases within a run.
type Marker struct {
	LastMessageID  int `json:"last_message_id"`
	TotalProcessed int `json:"total_processed"`
}

// Store reads and writes the marker file. Single writer only: two runs
// sharing one file is undefined behavior.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the saved marker. A missing or unreadable file yields a zero
// marker and ok=false; it never fails, so a corrupt file simply restarts the
// run from the beginning.
func (s *Store) Load() (Marker, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Marker{}, false
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, false
	}
	return m, true
}

// Save overwrites the marker file wholesale. The write goes through a temp
// file and rename so a crash mid-write leaves the previous marker intact.
func (s *Store) Save(lastMessageID, totalProcessed int) error {
	data, err := json.Marshal(Marker{
		LastMessageID:  lastMessageID,
		TotalProcessed: totalProcessed,
	})
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".progress-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
