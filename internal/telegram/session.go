package telegram

import (
	"encoding/json"
	"fmt"

	"github.com/celestix/gotgproto/storage"
	"github.com/glebarez/sqlite"
	"github.com/gotd/td/session"
	"gorm.io/gorm"
)

// StoredSession converts raw gotd session data into the record gotgproto
// keeps in its session table. gotgproto stores the session.Data JSON verbatim.
func StoredSession(data *session.Data) (*storage.Session, error) {
	if data == nil {
		return nil, fmt.Errorf("session data is nil")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal session data: %w", err)
	}

	return &storage.Session{
		Version: storage.LatestVersion,
		Data:    raw,
	}, nil
}

// SaveSessionToDB writes the session into the sqlite file the session factory
// reads. Version is the primary key, so saving upserts over a previous login.
func SaveSessionToDB(dbPath string, data *session.Data) error {
	sess, err := StoredSession(data)
	if err != nil {
		return err
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open session db: %w", err)
	}
	if err := db.AutoMigrate(&storage.Session{}); err != nil {
		return fmt.Errorf("migrate session table: %w", err)
	}
	return db.Save(sess).Error
}
