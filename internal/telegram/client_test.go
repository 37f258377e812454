package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMedia_None(t *testing.T) {
	m := &tg.Message{ID: 1, Message: "hello"}
	assert.Nil(t, classifyMedia(m))
}

func TestClassifyMedia_GeoLive(t *testing.T) {
	m := &tg.Message{ID: 42}
	m.SetMedia(&tg.MessageMediaGeoLive{})

	media := classifyMedia(m)
	require.NotNil(t, media)
	assert.Equal(t, KindGeoLive, media.Kind)
	assert.Equal(t, 42, media.SrcMsgID)
}

func TestClassifyMedia_WebPageWithURL(t *testing.T) {
	m := &tg.Message{ID: 7}
	m.SetMedia(&tg.MessageMediaWebPage{Webpage: &tg.WebPage{URL: "https://example.com/post"}})

	media := classifyMedia(m)
	require.NotNil(t, media)
	assert.Equal(t, KindWebPage, media.Kind)
	assert.Equal(t, "https://example.com/post", media.URL)
}

func TestClassifyMedia_WebPageWithoutURL(t *testing.T) {
	m := &tg.Message{ID: 8}
	m.SetMedia(&tg.MessageMediaWebPage{Webpage: &tg.WebPageEmpty{}})

	media := classifyMedia(m)
	require.NotNil(t, media)
	assert.Equal(t, KindWebPage, media.Kind)
	assert.Empty(t, media.URL)
}

func TestClassifyMedia_PhotoIsForwardable(t *testing.T) {
	m := &tg.Message{ID: 9}
	photoMedia := &tg.MessageMediaPhoto{}
	photoMedia.SetPhoto(&tg.Photo{ID: 555, AccessHash: 777, FileReference: []byte{1}})
	m.SetMedia(photoMedia)

	media := classifyMedia(m)
	require.NotNil(t, media)
	assert.Equal(t, KindForwardable, media.Kind)

	input, ok := media.Input.(*tg.InputMediaPhoto)
	require.True(t, ok)
	id, ok := input.ID.(*tg.InputPhoto)
	require.True(t, ok)
	assert.Equal(t, int64(555), id.ID)
	assert.Equal(t, int64(777), id.AccessHash)
}

func TestClassifyMedia_DocumentIsForwardable(t *testing.T) {
	m := &tg.Message{ID: 10}
	docMedia := &tg.MessageMediaDocument{}
	docMedia.SetDocument(&tg.Document{ID: 321, AccessHash: 654, FileReference: []byte{2}})
	m.SetMedia(docMedia)

	media := classifyMedia(m)
	require.NotNil(t, media)
	assert.Equal(t, KindForwardable, media.Kind)
	assert.IsType(t, &tg.InputMediaDocument{}, media.Input)
}

func TestClassifyMedia_UnknownKind(t *testing.T) {
	m := &tg.Message{ID: 11}
	m.SetMedia(&tg.MessageMediaContact{PhoneNumber: "+100"})

	media := classifyMedia(m)
	require.NotNil(t, media)
	assert.Equal(t, KindOther, media.Kind)
}

func TestSenderName_Fallback(t *testing.T) {
	c := &Client{senderFallback: "unknown"}

	m := &tg.Message{ID: 1}
	m.FromID = &tg.PeerUser{UserID: 99}

	assert.Equal(t, "unknown", c.senderName(m, map[int64]string{}))
	assert.Equal(t, "alice", c.senderName(m, map[int64]string{99: "alice"}))
}

func TestSenderName_PeerFallsBackToDialogPeer(t *testing.T) {
	c := &Client{senderFallback: "unknown"}

	m := &tg.Message{ID: 2, PeerID: &tg.PeerUser{UserID: 12}}

	assert.Equal(t, "bob", c.senderName(m, map[int64]string{12: "bob"}))
}

func TestExtractMessages_AscendingAndFiltered(t *testing.T) {
	c := &Client{senderFallback: "unknown"}

	history := &tg.MessagesMessagesSlice{
		Messages: []tg.MessageClass{
			&tg.Message{ID: 30, Message: "third", Date: 300},
			&tg.Message{ID: 20, Message: "second", Date: 200},
			&tg.Message{ID: 10, Message: "first", Date: 100},
			&tg.Message{ID: 5, Message: "already mirrored", Date: 50},
		},
	}

	msgs := c.extractMessages(history, 5)
	require.Len(t, msgs, 3)
	assert.Equal(t, []int{10, 20, 30}, []int{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	assert.Equal(t, "first", msgs[0].Text)
}
