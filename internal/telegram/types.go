package telegram

import (
	"time"

	"github.com/gotd/td/tg"
)

// MediaKind classifies message attachments for mirroring.
type MediaKind int

const (
	// KindGeoLive is a live location share; mirrored as a fixed notice.
	KindGeoLive MediaKind = iota
	// KindWebPage is a link preview; mirrored as the page URL when known.
	KindWebPage
	// KindForwardable is a photo or document that can be re-sent by reference.
	KindForwardable
	// KindOther is an attachment we cannot re-send; mirrored as a placeholder.
	KindOther
)

// Media describes the attachment of a fetched message.
type Media struct {
	Kind MediaKind
	// URL is set for KindWebPage when the preview carries one.
	URL string
	// Input references the original photo/document for KindForwardable.
	Input tg.InputMediaClass
	// SrcMsgID is the id of the message the attachment came from.
	SrcMsgID int
}

// Message is a fetched source message, reduced to what mirroring needs.
// Constructed when fetched, consumed once batched, discarded after send.
type Message struct {
	ID     int
	Text   string
	Date   time.Time
	Sender string
	Media  *Media
}

// ProgressFunc reports upload progress. Called repeatedly with cumulative
// uploaded bytes and the total size.
type ProgressFunc func(uploaded, total int64)
