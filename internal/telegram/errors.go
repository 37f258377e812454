package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gotd/td/tgerr"
)

// FloodWaitError reports a rate-limit from Telegram carrying the wait the
// server demands before the call may be repeated.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("telegram flood wait: retry after %s", e.Wait)
}

// TransientError wraps an RPC failure that is expected to clear on its own:
// server-side errors, timeouts, dropped connections. Callers retry these
// after a fixed delay.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("telegram transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// classify maps SDK errors onto the closed taxonomy the callers dispatch on:
// FLOOD_WAIT becomes FloodWaitError, any other RPC error or timeout becomes
// TransientError, everything else passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &FloodWaitError{Wait: wait}
	}

	var rpcErr *tgerr.Error
	if errors.As(err, &rpcErr) {
		return &TransientError{Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Err: err}
	}

	return err
}
