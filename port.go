package serialmon

import "time"

// Port is the open serial channel as seen by a Session.
//
// Buffered must not block: it reports how many bytes can be read right now.
// Reads happen only on the receiver goroutine and writes only on the
// foreground one, so implementations must tolerate a Read and a Write in
// flight at the same time.
type Port interface {
	Buffered() (int, error)
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Waiter is implemented by ports that can sleep until input is pending.
// WaitReadable returns false when the timeout elapsed with nothing to read.
type Waiter interface {
	WaitReadable(timeout time.Duration) (bool, error)
}

// Config holds the parameters for opening a serial port. Framing is always
// 8 data bits, no parity, one stop bit.
type Config struct {
	Device      string
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultBaudRate is used when Config.BaudRate is zero.
const DefaultBaudRate = 115200

// Opener opens a Port for a Config. Open is the default.
type Opener func(cfg Config) (Port, error)

func (c Config) baud() int {
	if c.BaudRate <= 0 {
		return DefaultBaudRate
	}
	return c.BaudRate
}
