package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/luhtfiimanal/serialmon"
)

type settings struct {
	Port          string
	Baud          int
	ReadTimeout   time.Duration
	PollInterval  time.Duration
	ShutdownGrace time.Duration
	MaxLineLength int
	Replacement   string
	TestMessages  []string
	TestDelay     time.Duration
	TestWarmup    time.Duration
}

func defaultSettings() settings {
	return settings{
		Baud:          serialmon.DefaultBaudRate,
		ReadTimeout:   time.Second,
		PollInterval:  serialmon.DefaultPollInterval,
		ShutdownGrace: serialmon.DefaultShutdownGrace,
		MaxLineLength: serialmon.DefaultMaxLineLength,
		TestMessages:  []string{"HELLO", "TEST123", "STATUS", "PING"},
		TestDelay:     time.Second,
		TestWarmup:    time.Second,
	}
}

type fileConfig struct {
	Port          string   `toml:"port"`
	Baud          int      `toml:"baud"`
	ReadTimeout   string   `toml:"read_timeout"`
	PollInterval  string   `toml:"poll_interval"`
	ShutdownGrace string   `toml:"shutdown_grace"`
	MaxLineLength int      `toml:"max_line_length"`
	Replacement   string   `toml:"replacement"`
	TestMessages  []string `toml:"test_messages"`
	TestDelay     string   `toml:"test_delay"`
	TestWarmup    string   `toml:"test_warmup"`
}

// loadSettings overlays the keys present in the TOML file at path onto cfg.
func loadSettings(path string, cfg settings) (settings, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return settings{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return settings{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return settings{}, fmt.Errorf("baud must be positive, got %d", raw.Baud)
		}
		cfg.Baud = raw.Baud
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"poll_interval", raw.PollInterval, &cfg.PollInterval},
		{"shutdown_grace", raw.ShutdownGrace, &cfg.ShutdownGrace},
		{"test_delay", raw.TestDelay, &cfg.TestDelay},
		{"test_warmup", raw.TestWarmup, &cfg.TestWarmup},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return settings{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if v < 0 {
			return settings{}, fmt.Errorf("%s must not be negative", d.key)
		}
		*d.dst = v
	}
	if meta.IsDefined("poll_interval") && cfg.PollInterval == 0 {
		return settings{}, fmt.Errorf("poll_interval must be positive")
	}
	if meta.IsDefined("max_line_length") {
		if raw.MaxLineLength < 0 {
			return settings{}, fmt.Errorf("max_line_length must not be negative")
		}
		cfg.MaxLineLength = raw.MaxLineLength
	}
	if meta.IsDefined("replacement") {
		cfg.Replacement = raw.Replacement
	}
	if meta.IsDefined("test_messages") {
		cfg.TestMessages = normalizeMessages(raw.TestMessages)
	}
	return cfg, nil
}

func normalizeMessages(in []string) []string {
	out := make([]string, 0, len(in))
	for _, msg := range in {
		v := strings.TrimSpace(msg)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
