// Package config loads the server configuration file, arendls.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
)

// FileName is the configuration file looked up in the user config directory.
const FileName = "arendls.toml"

// ErrInvalid reports a configuration file that parses but cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full server configuration.
type Config struct {
	Server    Server    `toml:"server"`
	Log       Log       `toml:"log"`
	Libraries Libraries `toml:"libraries"`
	Cache     Cache     `toml:"cache"`
	Watch     Watch     `toml:"watch"`
	Metrics   Metrics   `toml:"metrics"`
	Trace     Trace     `toml:"trace"`
}

// Server selects the transport. With both ports zero the server speaks over
// stdio.
type Server struct {
	ClientHost string `toml:"client_host"`
	ClientPort int    `toml:"client_port"`
	ServerPort int    `toml:"server_port"`
}

type Log struct {
	Level string `toml:"level"`
	// Wire logs every JSON-RPC message to stderr.
	Wire bool `toml:"wire"`
}

// Libraries lists directories searched for library dependencies, in
// addition to the parent directory of each registered library.
type Libraries struct {
	Dirs []string `toml:"dirs"`
}

type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Watch configures the built-in file watcher used when the client does not
// send workspace/didChangeWatchedFiles.
type Watch struct {
	Enabled  bool     `toml:"enabled"`
	Debounce Duration `toml:"debounce"`
	Ignore   []string `toml:"ignore"`
}

type Metrics struct {
	Addr string `toml:"addr"`
}

type Trace struct {
	Level    string `toml:"level"`
	Output   string `toml:"output"`
	Mode     string `toml:"mode"`
	RingSize int    `toml:"ring_size"`
}

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{ClientHost: "localhost"},
		Log:    Log{Level: "info"},
		Watch: Watch{
			Debounce: Duration{200 * time.Millisecond},
			Ignore:   []string{".git", ".bin"},
		},
		Trace: Trace{Level: "off", Output: "stderr", Mode: "stream", RingSize: 4096},
	}
}

// Find returns the configuration file in the user config directory, if any.
func Find() (string, bool) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	path := filepath.Join(dir, "arendls", FileName)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, true
	}
	return "", false
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalid, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the decoder cannot.
func (c Config) Validate() error {
	if c.Server.ClientPort != 0 && c.Server.ServerPort != 0 {
		return fmt.Errorf("%w: client_port and server_port are mutually exclusive", ErrInvalid)
	}
	for name, port := range map[string]int{"client_port": c.Server.ClientPort, "server_port": c.Server.ServerPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%w: %s %d out of range", ErrInvalid, name, port)
		}
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Watch.Debounce.Duration < 0 {
		return fmt.Errorf("%w: negative watch debounce", ErrInvalid)
	}
	switch c.Trace.Mode {
	case "", "stream", "ring", "both":
	default:
		return fmt.Errorf("%w: unknown trace mode %q", ErrInvalid, c.Trace.Mode)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (zapcore.Level, error) {
	if c.Log.Level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return lvl, nil
}
