package serialmon

import "time"

// Kind tags an Event for display.
type Kind int

const (
	KindInfo Kind = iota
	KindError
	KindReceive
	KindSend
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "INFO"
	case KindError:
		return "ERROR"
	case KindReceive:
		return "RX"
	case KindSend:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// Event is a timestamped record of something received, sent, or reported.
type Event struct {
	Time time.Time
	Kind Kind
	Text string
}

// EventSink consumes events. Emit is called from both the receiver
// goroutine and the foreground goroutine.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to an EventSink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

type discardSink struct{}

func (discardSink) Emit(Event) {}
