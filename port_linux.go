//go:build linux

package serialmon

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// SerialPort is a raw, 8-N-1 Linux serial port.
// Reads and writes go straight to the file descriptor; a self-pipe lets
// Close wake a goroutine parked in WaitReadable.
type SerialPort struct {
	fd        int
	pipeR     int
	pipeW     int
	config    Config
	closed    atomic.Bool
	closeOnce sync.Once
}

// Open opens and configures a serial device for raw 8-N-1 operation.
func Open(cfg Config) (Port, error) {
	p, err := OpenSerial(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// OpenSerial is Open with the concrete return type.
func OpenSerial(cfg Config) (*SerialPort, error) {
	speed, err := baudToUnix(cfg.baud())
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}

	if err := configureTermios(fd, speed, cfg.ReadTimeout); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// Back to blocking mode now that the line is configured
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set blocking: %w", err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	cfg.BaudRate = cfg.baud()
	return &SerialPort{
		fd:     fd,
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
		config: cfg,
	}, nil
}

func configureTermios(fd int, speed uint32, readTimeout time.Duration) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	// 8-N-1, no hardware flow control
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= speed
	termios.Ispeed = speed
	termios.Ospeed = speed

	vmin, vtime := readTimeoutToCC(readTimeout)
	termios.Cc[unix.VMIN] = vmin
	termios.Cc[unix.VTIME] = vtime

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// readTimeoutToCC maps a read timeout onto VMIN/VTIME. VTIME counts
// deciseconds and saturates at 25.5s. Zero keeps reads blocking for a byte.
func readTimeoutToCC(d time.Duration) (vmin, vtime uint8) {
	if d <= 0 {
		return 1, 0
	}
	ds := (d + 100*time.Millisecond - 1) / (100 * time.Millisecond)
	if ds > 255 {
		ds = 255
	}
	return 0, uint8(ds)
}

func (s *SerialPort) Device() string             { return s.config.Device }
func (s *SerialPort) BaudRate() int              { return s.config.BaudRate }
func (s *SerialPort) ReadTimeout() time.Duration { return s.config.ReadTimeout }
func (s *SerialPort) IsOpen() bool               { return !s.closed.Load() }

// Buffered reports the number of bytes waiting in the input queue.
func (s *SerialPort) Buffered() (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n, err := unix.IoctlGetInt(s.fd, unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("input queue: %w", err)
	}
	return n, nil
}

// WaitReadable blocks until input is pending, the timeout elapses, or the
// port is closed.
func (s *SerialPort) WaitReadable(timeout time.Duration) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	pfd := []unix.PollFd{
		{Fd: int32(s.fd), Events: unix.POLLIN},
		{Fd: int32(s.pipeR), Events: unix.POLLIN},
	}
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	for {
		_, err := unix.Poll(pfd, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll: %w", err)
		}
		break
	}
	if pfd[1].Revents&unix.POLLIN != 0 || s.closed.Load() {
		return false, ErrClosed
	}
	rev := pfd[0].Revents
	if rev&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		if n, err := unix.IoctlGetInt(s.fd, unix.TIOCINQ); err == nil && n > 0 {
			return true, nil
		}
		return false, ErrHangup
	}
	return rev&unix.POLLIN != 0, nil
}

// Read reads from the device. With a read timeout configured a read that
// times out returns 0, nil.
func (s *SerialPort) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	for {
		n, err := unix.Read(s.fd, p)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// Write writes all of p, continuing after short writes.
func (s *SerialPort) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	written := 0
	for written < len(p) {
		n, err := unix.Write(s.fd, p[written:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// Close closes the port and wakes any WaitReadable call.
// Safe to call multiple times; subsequent calls are no-ops.
func (s *SerialPort) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		unix.Write(s.pipeW, []byte{1})
		err = unix.Close(s.fd)
		unix.Close(s.pipeR)
		unix.Close(s.pipeW)
	})
	return err
}

func baudToUnix(baud int) (uint32, error) {
	switch baud {
	case 1200:
		return unix.B1200, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
	}
}
