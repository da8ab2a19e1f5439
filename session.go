package serialmon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval  = 10 * time.Millisecond
	DefaultShutdownGrace = 500 * time.Millisecond
)

// State is the lifecycle stage of a Session.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateMonitoring
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateMonitoring:
		return "monitoring"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Counters is a snapshot of the lines received and sent by a Session.
type Counters struct {
	Received uint64
	Sent     uint64
}

// Session owns one serial port for its whole life: it opens it, runs the
// receiver goroutine next to the operator input loop, and closes it once.
type Session struct {
	cfg           Config
	open          Opener
	sink          EventSink
	log           zerolog.Logger
	pollInterval  time.Duration
	shutdownGrace time.Duration
	framerOpts    []FramerOption
	now           func() time.Time

	mu    sync.Mutex
	state State
	port  Port

	running  atomic.Bool
	received atomic.Uint64
	sent     atomic.Uint64
}

type Option func(*Session)

// WithOpener replaces Open, mostly for tests.
func WithOpener(open Opener) Option {
	return func(s *Session) { s.open = open }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithPollInterval sets how long the receiver waits when no input is pending.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithShutdownGrace bounds how long shutdown waits for the receiver to exit.
func WithShutdownGrace(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.shutdownGrace = d
		}
	}
}

func WithFramerOptions(opts ...FramerOption) Option {
	return func(s *Session) { s.framerOpts = append(s.framerOpts, opts...) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession returns an idle session for cfg. A nil sink discards events.
func NewSession(cfg Config, sink EventSink, opts ...Option) *Session {
	if sink == nil {
		sink = discardSink{}
	}
	cfg.BaudRate = cfg.baud()
	s := &Session{
		cfg:           cfg,
		open:          Open,
		sink:          sink,
		log:           zerolog.Nop(),
		pollInterval:  DefaultPollInterval,
		shutdownGrace: DefaultShutdownGrace,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("device", cfg.Device).Logger()
	return s
}

func (s *Session) Device() string { return s.cfg.Device }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether the receiver and input loops should keep going.
func (s *Session) Running() bool { return s.running.Load() }

func (s *Session) Counters() Counters {
	return Counters{Received: s.received.Load(), Sent: s.sent.Load()}
}

// Connect opens the port. A failure moves the session straight to closed;
// it is never retried.
func (s *Session) Connect() error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrConnect, state)
	}
	port, err := s.open(s.cfg)
	if err != nil {
		s.setStateLocked(StateClosed)
		s.mu.Unlock()
		s.emit(KindError, fmt.Sprintf("Failed to open %s: %v", s.cfg.Device, err))
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	s.port = port
	s.setStateLocked(StateConnected)
	s.mu.Unlock()

	s.emit(KindInfo, fmt.Sprintf("Connected to %s at %d bps", s.cfg.Device, s.cfg.BaudRate))
	return nil
}

// Monitor runs the receiver goroutine and forwards each non-empty line read
// from input to Send. It returns when ctx is cancelled, input is exhausted,
// or the receiver fails; in the last case the receive error is returned.
// The port stays open; call Close afterwards.
func (s *Session) Monitor(ctx context.Context, input io.Reader) error {
	s.mu.Lock()
	if s.state != StateConnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrNotConnected, state)
	}
	port := s.port
	s.setStateLocked(StateMonitoring)
	s.mu.Unlock()

	// The receiver stops on the running flag, not on the caller's ctx.
	rxCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	s.running.Store(true)
	rxDone := make(chan error, 1)
	go func() {
		rxDone <- s.receive(rxCtx, port)
	}()

	s.emit(KindInfo, "Monitoring started. Type messages to send (Ctrl+C to exit)")

	lines := make(chan string)
	go s.scanInput(rxCtx, input, lines)

	var rxErr error
	rxExited := false
loop:
	for s.running.Load() {
		select {
		case <-ctx.Done():
			s.emit(KindInfo, "Stopping monitor...")
			break loop
		case rxErr = <-rxDone:
			rxExited = true
			break loop
		case line, ok := <-lines:
			if !ok {
				s.log.Debug().Msg("operator input closed")
				break loop
			}
			if line != "" {
				s.Send(line)
			}
		}
	}

	s.setState(StateShuttingDown)
	s.running.Store(false)
	cancel()
	if !rxExited {
		grace := time.NewTimer(s.shutdownGrace)
		defer grace.Stop()
		select {
		case rxErr = <-rxDone:
		case <-grace.C:
			s.log.Warn().Dur("grace", s.shutdownGrace).Msg("receiver still running after shutdown grace")
		}
	}
	return rxErr
}

func (s *Session) scanInput(ctx context.Context, input io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(input)
	for sc.Scan() {
		select {
		case lines <- strings.TrimRight(sc.Text(), "\r"):
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.log.Debug().Err(err).Msg("operator input failed")
	}
}

// SendSequence sends msgs one by one, pausing delay after each. It runs
// before monitoring starts.
func (s *Session) SendSequence(ctx context.Context, msgs []string, delay time.Duration) error {
	if st := s.State(); st != StateConnected {
		return fmt.Errorf("%w: session is %s", ErrNotConnected, st)
	}
	s.emit(KindInfo, "Sending test sequence...")
	for _, msg := range msgs {
		s.Send(msg)
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the port if it is open and reports the final counters.
// Calling it again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	port := s.port
	s.port = nil
	s.setStateLocked(StateShuttingDown)
	s.mu.Unlock()

	s.running.Store(false)
	var err error
	if port != nil {
		if err = port.Close(); err != nil {
			s.emit(KindError, fmt.Sprintf("Close error: %v", err))
		}
		s.emit(KindInfo, "Disconnected")
		c := s.Counters()
		s.emit(KindInfo, fmt.Sprintf("Statistics: RX=%d, TX=%d", c.Received, c.Sent))
	}
	s.setState(StateClosed)
	return err
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(st)
}

func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.log.Debug().Stringer("from", s.state).Stringer("to", st).Msg("session state")
	s.state = st
}

func (s *Session) emit(kind Kind, text string) {
	s.sink.Emit(Event{Time: s.now(), Kind: kind, Text: text})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
