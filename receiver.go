package serialmon

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// receive drains the port until the running flag drops or a read fails.
// Only this goroutine reads from the port or touches the framer.
func (s *Session) receive(ctx context.Context, port Port) error {
	framer := NewFramer(s.framerOpts...)
	waiter, _ := port.(Waiter)
	var (
		buf      []byte
		wasReady bool
	)
	s.log.Debug().Dur("poll_interval", s.pollInterval).Msg("receiver started")
	defer func() { s.log.Debug().Msg("receiver stopped") }()

	for s.running.Load() && ctx.Err() == nil {
		n, err := port.Buffered()
		if err != nil {
			return s.receiveFailed(err)
		}
		if n > 0 {
			wasReady = false
			if cap(buf) < n {
				buf = make([]byte, n)
			}
			m, err := port.Read(buf[:n])
			if err != nil {
				return s.receiveFailed(err)
			}
			before := framer.Overflows()
			for line := range framer.Feed(buf[:m]) {
				s.received.Add(1)
				s.emit(KindReceive, line)
			}
			if framer.Overflows() != before {
				s.log.Warn().Uint64("overflows", framer.Overflows()).Msg("line exceeded max length, split")
			}
			continue
		}

		// A ready port with nothing queued would spin on poll; fall back
		// to the timer for one interval.
		w := waiter
		if wasReady {
			w = nil
		}
		wasReady, err = s.idle(ctx, w)
		if err != nil {
			return s.receiveFailed(err)
		}
	}
	return nil
}

// idle waits up to one poll interval for input or cancellation.
func (s *Session) idle(ctx context.Context, w Waiter) (bool, error) {
	if w != nil {
		return w.WaitReadable(s.pollInterval)
	}
	t := time.NewTimer(s.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return false, nil
}

func (s *Session) receiveFailed(err error) error {
	if errors.Is(err, ErrClosed) && (!s.running.Load() || s.State() >= StateShuttingDown) {
		return nil
	}
	s.running.Store(false)
	s.log.Error().Err(err).Msg("receiver failed")
	s.emit(KindError, fmt.Sprintf("Receive error: %v", err))
	return fmt.Errorf("%w: %w", ErrReceive, err)
}
