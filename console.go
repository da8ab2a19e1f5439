package serialmon

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// ConsoleTimeFormat is the timestamp layout of rendered events.
const ConsoleTimeFormat = "15:04:05.000"

// Console renders events as "[15:04:05.000] [RX] text" lines. Writes are
// serialized so lines from the receiver and the foreground never mix.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewConsole returns a Console for f. Color is enabled when f is a terminal
// and noColor is false.
func NewConsole(f *os.File, noColor bool) *Console {
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	if tty && !noColor {
		return &Console{out: colorable.NewColorable(f), color: true}
	}
	return &Console{out: colorable.NewNonColorable(f)}
}

// NewWriterConsole renders to w without color.
func NewWriterConsole(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) Emit(ev Event) {
	line := fmt.Sprintf("[%s] [%s] %s", ev.Time.Format(ConsoleTimeFormat), ev.Kind, ev.Text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.color {
		fmt.Fprintf(c.out, "%s%s%s\n", kindColor(ev.Kind), line, ansiReset)
		return
	}
	fmt.Fprintln(c.out, line)
}

// Separator prints a horizontal rule.
func (c *Console) Separator() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, strings.Repeat("-", 80))
}

// Println prints plain text outside the event format.
func (c *Console) Println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, a...)
}

func kindColor(k Kind) string {
	switch k {
	case KindError:
		return ansiRed
	case KindReceive:
		return ansiGreen
	case KindSend:
		return ansiYellow
	default:
		return ansiCyan
	}
}
