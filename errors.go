package serialmon

import "errors"

var (
	// ErrConnect wraps any failure to open the serial device.
	ErrConnect = errors.New("connect failed")

	// ErrReceive wraps failures of the receive side. It ends the receiver loop.
	ErrReceive = errors.New("receive failed")

	// ErrSend wraps write failures. The session keeps running after one.
	ErrSend = errors.New("send failed")

	ErrClosed          = errors.New("serial port closed")
	ErrNotConnected    = errors.New("serial port not open")
	ErrHangup          = errors.New("serial device hung up")
	ErrUnsupportedBaud = errors.New("unsupported baud rate")
)
