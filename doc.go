// Package serialmon is a bidirectional serial-line terminal for debugging
// embedded targets: it prints every complete line the device sends while
// the operator types commands that go out CR+LF terminated.
//
// Features:
//   - Raw 8-N-1 serial I/O on Linux via termios, with a tarm/serial
//     fallback elsewhere
//   - Receiver goroutine that polls the input queue and frames lines on LF,
//     stripping a preceding CR and substituting invalid UTF-8
//   - Self-pipe so Close wakes a receiver parked in poll(2)
//   - Timestamped receive/send/info/error events rendered by a Console
//   - PTY-based tests for reliability
//
// Example usage:
//
//	console := serialmon.NewConsole(os.Stdout, false)
//	sess := serialmon.NewSession(serialmon.Config{
//	    Device:   "/dev/ttyUSB0",
//	    BaudRate: 115200,
//	}, console)
//	if err := sess.Connect(); err != nil {
//	    os.Exit(1)
//	}
//	defer sess.Close()
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	sess.Monitor(ctx, os.Stdin)
package serialmon
