package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/progress"
)

func newTestServer(t *testing.T) (*Server, *progress.Store) {
	t.Helper()
	store := progress.NewStore(filepath.Join(t.TempDir(), "backup_progress.json"))
	return NewServer(":0", store), store
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProgress_NoMarker(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"last_message_id":null,"total_processed":null}`, rec.Body.String())
}

func TestProgress_WithMarker(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.Save(1042, 360))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var marker progress.Marker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &marker))
	assert.Equal(t, 1042, marker.LastMessageID)
	assert.Equal(t, 360, marker.TotalProcessed)
}
