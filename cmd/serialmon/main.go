package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/luhtfiimanal/serialmon"
	"go.bug.st/serial/enumerator"
)

const usageLine = "Usage: serialmon --port /dev/ttyUSB0 --baud 115200"

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	open   serialmon.Opener
	ports  portLister
}

func main() {
	a := app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		open:   serialmon.Open,
		ports:  enumerator.GetDetailedPortsList,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (a app) run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serialmon", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	var (
		port, configPath    string
		baud                int
		list, test, noColor bool
	)
	fs.StringVar(&port, "port", "", "serial port (e.g. /dev/ttyUSB0, COM3)")
	fs.StringVar(&port, "p", "", "shorthand for --port")
	fs.IntVar(&baud, "baud", serialmon.DefaultBaudRate, "baud rate")
	fs.IntVar(&baud, "b", serialmon.DefaultBaudRate, "shorthand for --baud")
	fs.BoolVar(&list, "list", false, "list available serial ports")
	fs.BoolVar(&list, "l", false, "shorthand for --list")
	fs.BoolVar(&test, "test", false, "send test sequence after connection")
	fs.BoolVar(&test, "t", false, "shorthand for --test")
	fs.StringVar(&configPath, "config", "", "TOML settings file")
	fs.StringVar(&configPath, "c", "", "shorthand for --config")
	fs.BoolVar(&noColor, "no-color", false, "disable colored output")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	logger := serialmon.NewLogger(a.stderr)

	if list {
		if err := listPorts(a.stdout, a.ports); err != nil {
			logger.Error().Err(err).Msg("port listing failed")
			return 1
		}
		return 0
	}

	cfg := defaultSettings()
	if configPath != "" {
		loaded, err := loadSettings(configPath, cfg)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
		cfg = loaded
		logger.Debug().Str("path", configPath).Msg("loaded config")
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port", "p":
			cfg.Port = port
		case "baud", "b":
			cfg.Baud = baud
		}
	})

	if cfg.Port == "" {
		fmt.Fprintln(a.stdout, "Error: Serial port not specified")
		fmt.Fprintln(a.stdout, "Use --list to see available ports")
		fmt.Fprintln(a.stdout, usageLine)
		return 1
	}

	console := a.console(noColor)
	sess := serialmon.NewSession(serialmon.Config{
		Device:      cfg.Port,
		BaudRate:    cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	}, console,
		serialmon.WithOpener(a.open),
		serialmon.WithLogger(logger),
		serialmon.WithPollInterval(cfg.PollInterval),
		serialmon.WithShutdownGrace(cfg.ShutdownGrace),
		serialmon.WithFramerOptions(
			serialmon.WithReplacement(cfg.Replacement),
			serialmon.WithMaxLineLength(cfg.MaxLineLength),
		),
	)
	if err := sess.Connect(); err != nil {
		logger.Debug().Err(err).Msg("connect failed")
		return 1
	}
	defer sess.Close()

	if test {
		if err := sendTestSequence(ctx, sess, cfg); err != nil {
			logger.Debug().Err(err).Msg("test sequence interrupted")
			return 0
		}
	}

	console.Separator()
	if err := sess.Monitor(ctx, a.stdin); err != nil {
		logger.Debug().Err(err).Msg("monitor stopped")
	}
	console.Println()
	return 0
}

func (a app) console(noColor bool) *serialmon.Console {
	if f, ok := a.stdout.(*os.File); ok {
		return serialmon.NewConsole(f, noColor)
	}
	return serialmon.NewWriterConsole(a.stdout)
}
