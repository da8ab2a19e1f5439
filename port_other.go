//go:build !linux

package serialmon

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// pumpTimeout bounds each read of the background pump so it notices Close.
const pumpTimeout = 100 * time.Millisecond

// SerialPort wraps tarm/serial for platforms without TIOCINQ. A pump
// goroutine drains the device into a buffer so Buffered can answer
// without blocking.
type SerialPort struct {
	port   *serial.Port
	config Config

	mu      sync.Mutex
	pending []byte
	err     error
	closed  bool
	ready   chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func Open(cfg Config) (Port, error) {
	p, err := OpenSerial(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func OpenSerial(cfg Config) (*SerialPort, error) {
	cfg.BaudRate = cfg.baud()
	timeout := cfg.ReadTimeout
	if timeout <= 0 || timeout > pumpTimeout {
		timeout = pumpTimeout
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.BaudRate,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	s := &SerialPort{
		port:   p,
		config: cfg,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *SerialPort) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.port.Read(buf)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if n > 0 {
			s.pending = append(s.pending, buf[:n]...)
		}
		// tarm reports a read timeout as io.EOF with no data
		if err != nil && !(errors.Is(err, io.EOF) && n == 0) {
			s.err = err
		}
		failed := s.err != nil
		s.mu.Unlock()
		if n > 0 || failed {
			select {
			case s.ready <- struct{}{}:
			default:
			}
		}
		if failed {
			return
		}
	}
}

func (s *SerialPort) Device() string             { return s.config.Device }
func (s *SerialPort) BaudRate() int              { return s.config.BaudRate }
func (s *SerialPort) ReadTimeout() time.Duration { return s.config.ReadTimeout }

func (s *SerialPort) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *SerialPort) Buffered() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if len(s.pending) == 0 && s.err != nil {
		return 0, s.err
	}
	return len(s.pending), nil
}

func (s *SerialPort) WaitReadable(timeout time.Duration) (bool, error) {
	if n, err := s.Buffered(); err != nil || n > 0 {
		return n > 0, err
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.ready:
	case <-t.C:
	case <-s.done:
		return false, ErrClosed
	}
	n, err := s.Buffered()
	return n > 0, err
}

func (s *SerialPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if len(s.pending) == 0 {
		return 0, s.err
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *SerialPort) Write(p []byte) (int, error) {
	if !s.IsOpen() {
		return 0, ErrClosed
	}
	return s.port.Write(p)
}

func (s *SerialPort) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		err = s.port.Close()
	})
	return err
}
