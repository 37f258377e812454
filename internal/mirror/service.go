// Package mirror implements the resumable batch-transfer loop that forwards
// a source chat's history into a destination channel.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gotd/td/tg"

	"github.com/chatvault/chatvault/internal/logger"
	"github.com/chatvault/chatvault/internal/progress"
	"github.com/chatvault/chatvault/internal/telegram"
)

// ChatClient defines the telegram operations the loop needs.
type ChatClient interface {
	History(ctx context.Context, peer tg.InputPeerClass, offsetID, limit int) ([]telegram.Message, error)
	SendText(ctx context.Context, peer tg.InputPeerClass, text string) error
	SendMedia(ctx context.Context, peer tg.InputPeerClass, media *telegram.Media) error
}

// EventPublisher publishes batch events. A nil publisher disables publishing.
type EventPublisher interface {
	PublishBatchForwarded(ctx context.Context, event BatchForwardedEvent) error
}

// BatchForwardedEvent is emitted after each successfully forwarded batch.
type BatchForwardedEvent struct {
	LastMessageID  int       `json:"last_message_id"`
	BatchSize      int       `json:"batch_size"`
	TotalProcessed int       `json:"total_processed"`
	At             time.Time `json:"at"`
}

// Options configures the transfer loop.
type Options struct {
	FetchLimit int
	BatchSize  int
	RetryDelay time.Duration // fixed pause on transient failures
	JitterMin  int           // seconds, inclusive lower bound
	JitterMax  int           // seconds, inclusive upper bound
	Location   *time.Location
}

// Service runs the transfer loop. Batches are sent strictly sequentially and
// progress only advances once a batch is confirmed sent, so a restart resumes
// from the last checkpoint without resending confirmed work.
type Service struct {
	tg     ChatClient
	source tg.InputPeerClass
	dest   tg.InputPeerClass
	store  *progress.Store
	pub    EventPublisher
	opts   Options
	log    *logger.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewService creates the transfer loop service. pub may be nil.
func NewService(tgClient ChatClient, source, dest tg.InputPeerClass, store *progress.Store, pub EventPublisher, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s := &Service{
		tg:     tgClient,
		source: source,
		dest:   dest,
		store:  store,
		pub:    pub,
		opts:   opts,
		log:    logger.Get(),
		sleep:  sleepCtx,
	}
	s.jitter = func() time.Duration {
		span := opts.JitterMax - opts.JitterMin + 1
		return time.Duration(opts.JitterMin+rand.Intn(span)) * time.Second
	}
	return s
}

// SetSleeper overrides the blocking sleep (for tests).
func (s *Service) SetSleeper(fn func(ctx context.Context, d time.Duration) error) {
	s.sleep = fn
}

// SetJitter overrides jitter generation (for tests).
func (s *Service) SetJitter(fn func() time.Duration) {
	s.jitter = fn
}

// Run executes the loop until the source history is exhausted or ctx is done.
// The only natural terminal condition is an empty fetch; retries on failures
// are unbounded, the loop keeps going until the history is drained.
func (s *Service) Run(ctx context.Context) error {
	offsetID, total := 0, 0
	if marker, ok := s.store.Load(); ok {
		offsetID, total = marker.LastMessageID, marker.TotalProcessed
		s.log.Info().Int("offset_id", offsetID).Int("total_processed", total).Msg("mirror: resuming from checkpoint")
	} else {
		s.log.Info().Msg("mirror: starting fresh")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.log.Info().Int("offset_id", offsetID).Msg("mirror: fetching messages")
		msgs, err := s.tg.History(ctx, s.source, offsetID, s.opts.FetchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error().Err(err).Dur("retry_in", s.opts.RetryDelay).Msg("mirror: fetch failed, pausing")
			if err := s.sleep(ctx, s.opts.RetryDelay); err != nil {
				return err
			}
			continue
		}
		if len(msgs) == 0 {
			s.log.Info().Int("total_processed", total).Msg("mirror: no more messages, backup complete")
			return nil
		}
		s.log.Info().Int("fetched", len(msgs)).Msg("mirror: fetched messages")

		batches := partition(msgs, s.opts.BatchSize)
		restart := false
		for i, batch := range batches {
			if err := s.forwardBatch(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Unexpected failure: pause and restart the outer iteration
				// from the last persisted offset.
				s.log.Error().Err(err).Dur("retry_in", s.opts.RetryDelay).Msg("mirror: batch failed, restarting from checkpoint")
				if err := s.sleep(ctx, s.opts.RetryDelay); err != nil {
					return err
				}
				restart = true
				break
			}

			lastID := batch[len(batch)-1].ID
			if err := s.store.Save(lastID, total); err != nil {
				s.log.Warn().Err(err).Int("last_id", lastID).Msg("mirror: failed to persist checkpoint")
			}
			offsetID = lastID
			s.publishBatch(ctx, lastID, len(batch), total)
			s.log.Info().Int("batch", i+1).Int("batches", len(batches)).Int("last_id", lastID).Msg("mirror: batch forwarded")

			// Pace outgoing traffic independent of error handling.
			delay := s.jitter()
			s.log.Debug().Dur("delay", delay).Msg("mirror: sleeping before next batch")
			if err := s.sleep(ctx, delay); err != nil {
				return err
			}
		}
		if restart {
			continue
		}

		total += len(msgs)
		s.log.Info().Int("total_processed", total).Msg("mirror: processed fetch window")
	}
}

// forwardBatch sends one batch, retrying in place on rate limits and
// transient failures. The batch is resent unchanged; progress is not touched
// here, so a retried batch never advances the checkpoint early.
func (s *Service) forwardBatch(ctx context.Context, batch []telegram.Message) error {
	text := batchText(batch, s.opts.Location)

	for {
		err := s.sendBatch(ctx, text, batch)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var fw *telegram.FloodWaitError
		if errors.As(err, &fw) {
			wait := fw.Wait + s.jitter()
			s.log.Warn().Dur("wait", wait).Msg("mirror: rate limited, suspending before retrying batch")
			if serr := s.sleep(ctx, wait); serr != nil {
				return serr
			}
			continue
		}

		var tr *telegram.TransientError
		if errors.As(err, &tr) {
			s.log.Error().Err(err).Dur("retry_in", s.opts.RetryDelay).Msg("mirror: transient failure, retrying batch")
			if serr := s.sleep(ctx, s.opts.RetryDelay); serr != nil {
				return serr
			}
			continue
		}

		return err
	}
}

// sendBatch sends the batch text blob, then the media follow-ups.
func (s *Service) sendBatch(ctx context.Context, text string, batch []telegram.Message) error {
	if err := s.tg.SendText(ctx, s.dest, text); err != nil {
		return err
	}
	for _, m := range batch {
		if m.Media == nil {
			continue
		}
		if err := s.forwardMedia(ctx, m.Media); err != nil {
			return err
		}
	}
	return nil
}

// forwardMedia mirrors one attachment: live locations and link previews
// become notices, everything re-sendable is forwarded by reference.
func (s *Service) forwardMedia(ctx context.Context, media *telegram.Media) error {
	switch media.Kind {
	case telegram.KindGeoLive:
		return s.tg.SendText(ctx, s.dest, fmt.Sprintf("📍 Live Location shared at message %d", media.SrcMsgID))
	case telegram.KindWebPage:
		if media.URL != "" {
			return s.tg.SendText(ctx, s.dest, "🌐 Webpage shared: "+media.URL)
		}
		return s.tg.SendText(ctx, s.dest, fmt.Sprintf("🌐 Webpage preview at message %d", media.SrcMsgID))
	case telegram.KindForwardable:
		return s.tg.SendMedia(ctx, s.dest, media)
	default:
		return s.tg.SendText(ctx, s.dest, fmt.Sprintf("[Media from %d]", media.SrcMsgID))
	}
}

func (s *Service) publishBatch(ctx context.Context, lastID, size, total int) {
	if s.pub == nil {
		return
	}
	event := BatchForwardedEvent{
		LastMessageID:  lastID,
		BatchSize:      size,
		TotalProcessed: total,
		At:             time.Now(),
	}
	if err := s.pub.PublishBatchForwarded(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("mirror: failed to publish batch event")
	}
}

// sleepCtx blocks for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
