//go:build linux

package serialmon

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

func openPTY(t *testing.T) (master *os.File, port *SerialPort) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err = OpenSerial(Config{
		Device:      slave.Name(),
		BaudRate:    115200,
		ReadTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })
	return master, port
}

// readMaster reads exactly n bytes from the master side or fails the test.
func readMaster(t *testing.T, master *os.File, n int) string {
	t.Helper()
	got := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, n)
		if _, err := io.ReadFull(master, buf); err != nil {
			errs <- err
			return
		}
		got <- string(buf)
	}()
	select {
	case s := <-got:
		return s
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for master to receive")
	}
	return ""
}

func TestSerialPort_BufferedRead(t *testing.T) {
	master, port := openPTY(t)

	n, err := port.Buffered()
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = master.Write([]byte("hello\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err = port.Buffered()
		return err == nil && n == 6
	}, time.Second, time.Millisecond)

	buf := make([]byte, n)
	m, err := port.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(buf[:m]))
}

func TestSerialPort_RawInput(t *testing.T) {
	master, port := openPTY(t)

	// No CR translation or echo on a raw line
	_, err := master.Write([]byte("A\r\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err := port.Buffered()
		return err == nil && n == 3
	}, time.Second, time.Millisecond)

	buf := make([]byte, 3)
	_, err = port.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "A\r\n", string(buf))
}

func TestSerialPort_Write(t *testing.T) {
	master, port := openPTY(t)

	line := "testline\r\n"
	n, err := port.Write([]byte(line))
	require.NoError(t, err)
	require.Equal(t, len(line), n)
	require.Equal(t, line, readMaster(t, master, len(line)))
}

func TestSerialPort_WaitReadable(t *testing.T) {
	master, port := openPTY(t)

	ready, err := port.WaitReadable(20 * time.Millisecond)
	require.NoError(t, err)
	require.False(t, ready)

	_, err = master.Write([]byte("x"))
	require.NoError(t, err)

	ready, err = port.WaitReadable(time.Second)
	require.NoError(t, err)
	require.True(t, ready)
}

func TestSerialPort_CloseWakesWaiter(t *testing.T) {
	_, port := openPTY(t)

	done := make(chan error, 1)
	go func() {
		_, err := port.WaitReadable(10 * time.Second)
		done <- err
	}()

	// Give the goroutine a chance to block in poll
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, port.Close())
	require.False(t, port.IsOpen())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for WaitReadable to return after Close")
	}

	// Should be a no-op due to closeOnce
	require.NoError(t, port.Close())

	_, err := port.Buffered()
	require.ErrorIs(t, err, ErrClosed)
	_, err = port.Write([]byte("late"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestSerialPort_Hangup(t *testing.T) {
	master, port := openPTY(t)

	// Simulate device disconnect by closing master
	require.NoError(t, master.Close())

	_, err := port.WaitReadable(time.Second)
	require.Error(t, err)
}

func TestOpenSerial_Errors(t *testing.T) {
	_, err := OpenSerial(Config{Device: "/dev/serialmon-does-not-exist"})
	require.Error(t, err)

	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	_, err = OpenSerial(Config{Device: slave.Name(), BaudRate: 12345})
	require.ErrorIs(t, err, ErrUnsupportedBaud)
}

func TestOpenSerial_Defaults(t *testing.T) {
	_, port := openPTY(t)
	require.Equal(t, 115200, port.BaudRate())
	require.Equal(t, 100*time.Millisecond, port.ReadTimeout())
	require.True(t, port.IsOpen())
}

func TestReadTimeoutToCC(t *testing.T) {
	cases := []struct {
		in          time.Duration
		vmin, vtime uint8
	}{
		{0, 1, 0},
		{50 * time.Millisecond, 0, 1},
		{100 * time.Millisecond, 0, 1},
		{time.Second, 0, 10},
		{time.Minute, 0, 255},
	}
	for _, tc := range cases {
		vmin, vtime := readTimeoutToCC(tc.in)
		require.Equal(t, tc.vmin, vmin, tc.in.String())
		require.Equal(t, tc.vtime, vtime, tc.in.String())
	}
}
