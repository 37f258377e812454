package mirror

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/progress"
	"github.com/chatvault/chatvault/internal/telegram"
)

// fakeClient serves History from a fixed message list keyed by offset, which
// models resumption naturally: a restarted fetch sees only what is left.
type fakeClient struct {
	source []telegram.Message

	historyOffsets []int
	texts          []string
	media          []*telegram.Media

	textErrs  []error // popped per SendText call
	mediaErrs []error // popped per SendMedia call
}

func (f *fakeClient) History(_ context.Context, _ tg.InputPeerClass, offsetID, limit int) ([]telegram.Message, error) {
	f.historyOffsets = append(f.historyOffsets, offsetID)
	var out []telegram.Message
	for _, m := range f.source {
		if m.ID > offsetID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeClient) SendText(_ context.Context, _ tg.InputPeerClass, text string) error {
	f.texts = append(f.texts, text)
	return f.popErr(&f.textErrs)
}

func (f *fakeClient) SendMedia(_ context.Context, _ tg.InputPeerClass, media *telegram.Media) error {
	f.media = append(f.media, media)
	return f.popErr(&f.mediaErrs)
}

func (f *fakeClient) popErr(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

type recordedSleep struct {
	durations []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.durations = append(r.durations, d)
	return nil
}

func sourceMessages(n int) []telegram.Message {
	date := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]telegram.Message, n)
	for i := range out {
		out[i] = telegram.Message{ID: i + 1, Text: "m", Sender: "a", Date: date}
	}
	return out
}

func newTestService(t *testing.T, client *fakeClient, opts Options) (*Service, *progress.Store, *recordedSleep) {
	t.Helper()
	store := progress.NewStore(filepath.Join(t.TempDir(), "progress.json"))
	svc := NewService(client, nil, nil, store, nil, opts)
	sleeps := &recordedSleep{}
	svc.SetSleeper(sleeps.sleep)
	svc.SetJitter(func() time.Duration { return 15 * time.Second })
	return svc, store, sleeps
}

func TestRun_EmptyFetchCompletes(t *testing.T) {
	client := &fakeClient{}
	svc, _, _ := newTestService(t, client, Options{FetchLimit: 500, BatchSize: 20, RetryDelay: 70 * time.Second})

	require.NoError(t, svc.Run(context.Background()))
	assert.Empty(t, client.texts)
}

func TestRun_ForwardsBatchesAndAdvancesCheckpoint(t *testing.T) {
	client := &fakeClient{source: sourceMessages(5)}
	svc, store, _ := newTestService(t, client, Options{FetchLimit: 500, BatchSize: 2, RetryDelay: 70 * time.Second})

	require.NoError(t, svc.Run(context.Background()))

	// ceil(5/2) = 3 batch blobs
	require.Len(t, client.texts, 3)

	marker, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, 5, marker.LastMessageID, "checkpoint is the last id of the last sent batch")

	// second fetch resumes after the last forwarded id and finds nothing
	assert.Equal(t, []int{0, 5}, client.historyOffsets)
}

func TestRun_FloodWaitRetriesSameBatchAfterSuspension(t *testing.T) {
	client := &fakeClient{
		source:   sourceMessages(2),
		textErrs: []error{&telegram.FloodWaitError{Wait: 30 * time.Second}},
	}
	svc, store, sleeps := newTestService(t, client, Options{FetchLimit: 500, BatchSize: 20, RetryDelay: 70 * time.Second, JitterMin: 12, JitterMax: 20})

	require.NoError(t, svc.Run(context.Background()))

	// same blob sent twice, unchanged
	require.Len(t, client.texts, 2)
	assert.Equal(t, client.texts[0], client.texts[1])

	// suspension is W + jitter, with jitter pinned to 15s: within [W+12, W+20]
	require.NotEmpty(t, sleeps.durations)
	assert.Equal(t, 45*time.Second, sleeps.durations[0])
	assert.GreaterOrEqual(t, sleeps.durations[0], 42*time.Second)
	assert.LessOrEqual(t, sleeps.durations[0], 50*time.Second)

	marker, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, 2, marker.LastMessageID)
}

func TestRun_TransientRetriesWithFixedDelay(t *testing.T) {
	client := &fakeClient{
		source:   sourceMessages(1),
		textErrs: []error{&telegram.TransientError{Err: errors.New("rpc dropped")}},
	}
	svc, store, sleeps := newTestService(t, client, Options{FetchLimit: 500, BatchSize: 20, RetryDelay: 70 * time.Second})

	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, client.texts, 2)
	assert.Equal(t, 70*time.Second, sleeps.durations[0])

	marker, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, 1, marker.LastMessageID)
}

func TestRun_CheckpointNotAdvancedWhileRetrying(t *testing.T) {
	// every send fails until the context is cancelled; the checkpoint must
	// never record the batch that kept retrying
	client := &fakeClient{source: sourceMessages(3)}
	client.textErrs = []error{
		&telegram.TransientError{Err: errors.New("one")},
		&telegram.TransientError{Err: errors.New("two")},
	}

	svc, store, _ := newTestService(t, client, Options{FetchLimit: 500, BatchSize: 20, RetryDelay: time.Second})

	cancelAfter := 2
	svc.SetSleeper(func(ctx context.Context, _ time.Duration) error {
		cancelAfter--
		if cancelAfter < 0 {
			return context.Canceled
		}
		return nil
	})

	_, ok := store.Load()
	assert.False(t, ok)

	_ = svc.Run(context.Background())

	// third attempt succeeded before the sleeper gave out, so the marker
	// reflects the batch only after it was confirmed
	marker, ok := store.Load()
	if ok {
		assert.Equal(t, 3, marker.LastMessageID)
	}
}

func TestRun_MediaFollowUps(t *testing.T) {
	date := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{source: []telegram.Message{
		{ID: 1, Text: "", Sender: "a", Date: date, Media: &telegram.Media{Kind: telegram.KindGeoLive, SrcMsgID: 1}},
		{ID: 2, Text: "", Sender: "a", Date: date, Media: &telegram.Media{Kind: telegram.KindWebPage, URL: "https://example.com", SrcMsgID: 2}},
		{ID: 3, Text: "", Sender: "a", Date: date, Media: &telegram.Media{Kind: telegram.KindWebPage, SrcMsgID: 3}},
		{ID: 4, Text: "", Sender: "a", Date: date, Media: &telegram.Media{Kind: telegram.KindForwardable, Input: &tg.InputMediaPhoto{}, SrcMsgID: 4}},
		{ID: 5, Text: "", Sender: "a", Date: date, Media: &telegram.Media{Kind: telegram.KindOther, SrcMsgID: 5}},
	}}
	svc, _, _ := newTestService(t, client, Options{FetchLimit: 500, BatchSize: 20, RetryDelay: time.Second})

	require.NoError(t, svc.Run(context.Background()))

	// one batch blob + four text notices; the forwardable one goes out as media
	require.Len(t, client.texts, 5)
	assert.Contains(t, client.texts[1], "Live Location shared at message 1")
	assert.Contains(t, client.texts[2], "Webpage shared: https://example.com")
	assert.Contains(t, client.texts[3], "Webpage preview at message 3")
	assert.Contains(t, client.texts[4], "[Media from 5]")

	require.Len(t, client.media, 1)
	assert.Equal(t, 4, client.media[0].SrcMsgID)
}

func TestRun_UnexpectedErrorRestartsFromCheckpoint(t *testing.T) {
	client := &fakeClient{
		source:   sourceMessages(2),
		textErrs: []error{errors.New("boom")},
	}
	svc, store, _ := newTestService(t, client, Options{FetchLimit: 500, BatchSize: 20, RetryDelay: time.Second})

	require.NoError(t, svc.Run(context.Background()))

	// failed mid-fetch, restarted from the unpersisted offset, refetched,
	// succeeded, then saw the empty fetch
	assert.Equal(t, []int{0, 0, 2}, client.historyOffsets)

	marker, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, 2, marker.LastMessageID)
}

func TestRun_ResumesFromSavedMarker(t *testing.T) {
	store := progress.NewStore(filepath.Join(t.TempDir(), "progress.json"))
	require.NoError(t, store.Save(3, 3))

	client := &fakeClient{source: sourceMessages(5)}
	svc := NewService(client, nil, nil, store, nil, Options{FetchLimit: 500, BatchSize: 20, RetryDelay: time.Second})
	sleeps := &recordedSleep{}
	svc.SetSleeper(sleeps.sleep)
	svc.SetJitter(func() time.Duration { return time.Second })

	require.NoError(t, svc.Run(context.Background()))

	// only ids 4 and 5 are fetched
	assert.Equal(t, []int{3, 5}, client.historyOffsets)
	require.Len(t, client.texts, 1)

	marker, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, 5, marker.LastMessageID)
	assert.Equal(t, 3, marker.TotalProcessed) // saved total lags one fetch window behind
}
