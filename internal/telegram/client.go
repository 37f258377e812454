// Package telegram wraps the MTProto client with the operations the backup
// and uploader commands need: peer resolution, ascending history pages,
// text sends, media forwarding and video uploads.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"

	"github.com/chatvault/chatvault/internal/logger"
)

// historyPageLimit is the hard cap Telegram places on one GetHistory call.
const historyPageLimit = 100

// Client wraps a gotgproto client and provides high-level operations.
type Client struct {
	proto          *gotgproto.Client
	rateLimiter    *RateLimiter
	senderFallback string
	log            *logger.Logger
}

// NewClient creates a client wrapper. senderFallback is the display name used
// when a message's sender cannot be resolved to a username.
func NewClient(proto *gotgproto.Client, senderFallback string) *Client {
	return &Client{
		proto:          proto,
		rateLimiter:    DefaultRateLimiter(),
		senderFallback: senderFallback,
		log:            logger.Get(),
	}
}

// Close stops the underlying client.
func (c *Client) Close() {
	if c.proto != nil {
		c.proto.Stop()
	}
}

// Self returns the authorized account's username.
func (c *Client) Self() string {
	if c.proto == nil || c.proto.Self == nil {
		return ""
	}
	return c.proto.Self.Username
}

func (c *Client) api() *tg.Client {
	return c.proto.API()
}

// ResolvePeer resolves a chat identifier to an input peer. The identifier is
// either a numeric id known to the session's peer storage or a @username.
func (c *Client) ResolvePeer(ctx context.Context, ident string) (tg.InputPeerClass, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil, fmt.Errorf("empty peer identifier")
	}

	if id, err := strconv.ParseInt(ident, 10, 64); err == nil {
		peer := c.proto.PeerStorage.GetInputPeerById(id)
		if _, empty := peer.(*tg.InputPeerEmpty); !empty {
			return peer, nil
		}
		return nil, fmt.Errorf("peer %d not found in session storage; open the chat once from this account or configure a @username", id)
	}

	username := strings.TrimPrefix(ident, "@")
	c.log.Info().Str("username", username).Msg("telegram: resolving username")
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	resolved, err := c.api().ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return nil, c.fail("resolve username", err)
	}

	if len(resolved.Chats) > 0 {
		if ch, ok := resolved.Chats[0].(*tg.Channel); ok {
			return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
		}
	}
	if len(resolved.Users) > 0 {
		if u, ok := resolved.Users[0].(*tg.User); ok {
			return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, nil
		}
	}
	return nil, fmt.Errorf("username not found: %s", username)
}

// History fetches up to limit messages strictly after offsetID from peer,
// oldest first. Telegram caps a single page at 100, so larger limits are
// served by consecutive pages inside one call.
func (c *Client) History(ctx context.Context, peer tg.InputPeerClass, offsetID, limit int) ([]Message, error) {
	var out []Message
	cursor := offsetID

	for len(out) < limit {
		page := limit - len(out)
		if page > historyPageLimit {
			page = historyPageLimit
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		c.log.Debug().Int("offset_id", cursor).Int("page", page).Msg("telegram: fetching history page")

		// AddOffset shifts the window to the page of messages newer than
		// the offset id; the response itself arrives newest-first.
		history, err := c.api().MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:      peer,
			OffsetID:  cursor,
			AddOffset: -page,
			Limit:     page,
		})
		if err != nil {
			return nil, c.fail("get history", err)
		}

		msgs := c.extractMessages(history, cursor)
		if len(msgs) == 0 {
			break
		}
		out = append(out, msgs...)
		cursor = msgs[len(msgs)-1].ID
	}

	return out, nil
}

// SendText sends a plain text message to peer.
func (c *Client) SendText(ctx context.Context, peer tg.InputPeerClass, text string) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.api().MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: rand.Int63(),
	})
	if err != nil {
		return c.fail("send message", err)
	}
	return nil
}

// SendMedia re-sends a forwardable attachment to peer by reference, without
// downloading it.
func (c *Client) SendMedia(ctx context.Context, peer tg.InputPeerClass, media *Media) error {
	if media == nil || media.Input == nil {
		return fmt.Errorf("media is not forwardable")
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.api().MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    media.Input,
		RandomID: rand.Int63(),
	})
	if err != nil {
		return c.fail("send media", err)
	}
	return nil
}

// SendVideo uploads the file at path and sends it to peer as a streamable
// video. thumbPath optionally attaches a thumbnail frame; progress, when
// non-nil, receives cumulative uploaded bytes.
func (c *Client) SendVideo(ctx context.Context, peer tg.InputPeerClass, path, caption, thumbPath string, progress ProgressFunc) error {
	up := uploader.NewUploader(c.api()).WithProgress(progressAdapter{cb: progress})

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	file, err := up.FromPath(ctx, path)
	if err != nil {
		return c.fail("upload video", err)
	}

	doc := &tg.InputMediaUploadedDocument{
		File:     file,
		MimeType: "video/mp4",
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeVideo{SupportsStreaming: true},
			&tg.DocumentAttributeFilename{FileName: filepath.Base(path)},
		},
	}
	if thumbPath != "" {
		thumb, err := up.FromPath(ctx, thumbPath)
		if err != nil {
			return c.fail("upload thumbnail", err)
		}
		doc.SetThumb(thumb)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	_, err = c.api().MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    doc,
		Message:  caption,
		RandomID: rand.Int63(),
	})
	if err != nil {
		return c.fail("send video", err)
	}
	return nil
}

// fail classifies an SDK error and keeps the rate limiter in sync with any
// server-imposed flood wait.
func (c *Client) fail(op string, err error) error {
	err = classify(err)
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		c.log.Warn().Dur("wait", fw.Wait).Str("op", op).Msg("telegram: FLOOD_WAIT")
		c.rateLimiter.SetFloodWait(fw.Wait)
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// extractMessages converts a history response into ascending Messages with id
// strictly greater than afterID.
func (c *Client) extractMessages(history tg.MessagesMessagesClass, afterID int) []Message {
	var raw []tg.MessageClass
	var users []tg.UserClass

	switch h := history.(type) {
	case *tg.MessagesMessages:
		raw, users = h.Messages, h.Users
	case *tg.MessagesMessagesSlice:
		raw, users = h.Messages, h.Users
	case *tg.MessagesChannelMessages:
		raw, users = h.Messages, h.Users
	default:
		return nil
	}

	names := make(map[int64]string, len(users))
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			names[user.ID] = user.Username
		}
	}

	var out []Message
	for _, mc := range raw {
		m, ok := mc.(*tg.Message)
		if !ok || m.ID <= afterID {
			continue
		}
		out = append(out, Message{
			ID:     m.ID,
			Text:   m.Message,
			Date:   time.Unix(int64(m.Date), 0),
			Sender: c.senderName(m, names),
			Media:  classifyMedia(m),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// senderName resolves the message sender's username, falling back to the
// configured default when the sender is unknown or has no username.
func (c *Client) senderName(m *tg.Message, names map[int64]string) string {
	var userID int64
	if from, ok := m.FromID.(*tg.PeerUser); ok {
		userID = from.UserID
	} else if peer, ok := m.PeerID.(*tg.PeerUser); ok {
		userID = peer.UserID
	}
	if name := names[userID]; name != "" {
		return name
	}
	return c.senderFallback
}

// classifyMedia maps a message attachment to the mirroring taxonomy.
func classifyMedia(m *tg.Message) *Media {
	media, ok := m.GetMedia()
	if !ok {
		return nil
	}

	switch mm := media.(type) {
	case *tg.MessageMediaGeoLive:
		return &Media{Kind: KindGeoLive, SrcMsgID: m.ID}
	case *tg.MessageMediaWebPage:
		out := &Media{Kind: KindWebPage, SrcMsgID: m.ID}
		if wp, ok := mm.Webpage.(*tg.WebPage); ok {
			out.URL = wp.URL
		}
		return out
	case *tg.MessageMediaPhoto:
		if p, ok := mm.GetPhoto(); ok {
			if photo, ok := p.(*tg.Photo); ok {
				return &Media{
					Kind:     KindForwardable,
					SrcMsgID: m.ID,
					Input: &tg.InputMediaPhoto{ID: &tg.InputPhoto{
						ID:            photo.ID,
						AccessHash:    photo.AccessHash,
						FileReference: photo.FileReference,
					}},
				}
			}
		}
		return &Media{Kind: KindOther, SrcMsgID: m.ID}
	case *tg.MessageMediaDocument:
		if d, ok := mm.GetDocument(); ok {
			if doc, ok := d.(*tg.Document); ok {
				return &Media{
					Kind:     KindForwardable,
					SrcMsgID: m.ID,
					Input: &tg.InputMediaDocument{ID: &tg.InputDocument{
						ID:            doc.ID,
						AccessHash:    doc.AccessHash,
						FileReference: doc.FileReference,
					}},
				}
			}
		}
		return &Media{Kind: KindOther, SrcMsgID: m.ID}
	default:
		return &Media{Kind: KindOther, SrcMsgID: m.ID}
	}
}

// progressAdapter bridges the gotd uploader progress callback to ProgressFunc.
type progressAdapter struct {
	cb ProgressFunc
}

func (p progressAdapter) Chunk(_ context.Context, state uploader.ProgressState) error {
	if p.cb != nil {
		p.cb(state.Uploaded, state.Total)
	}
	return nil
}
