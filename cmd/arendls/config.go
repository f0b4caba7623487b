package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"arendls/internal/config"
	"arendls/internal/driver"
)

// loadConfig reads the configuration file and applies the flags the user
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	if path == "" {
		path, _ = config.Find()
	}
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("cache") {
		cfg.Cache.Enabled, _ = flags.GetBool("cache")
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Dir, _ = flags.GetString("cache-dir")
		cfg.Cache.Enabled = true
	}
	if flags.Changed("library-dir") {
		dirs, _ := flags.GetStringSlice("library-dir")
		cfg.Libraries.Dirs = append(cfg.Libraries.Dirs, dirs...)
	}
	if flags.Changed("trace") {
		cfg.Trace.Output, _ = flags.GetString("trace")
		if cfg.Trace.Level == "off" || cfg.Trace.Level == "" {
			cfg.Trace.Level = "phase"
		}
	}
	if flags.Changed("trace-level") {
		cfg.Trace.Level, _ = flags.GetString("trace-level")
	}
	if flags.Changed("trace-mode") {
		cfg.Trace.Mode, _ = flags.GetString("trace-mode")
	}
	if flags.Changed("trace-ring-size") {
		cfg.Trace.RingSize, _ = flags.GetInt("trace-ring-size")
	}
	if err := applyServeFlags(cmd, &cfg); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the process logger: a console encoder on stderr, teed
// with extra, usually the editor's log window.
func newLogger(cfg config.Config, extra ...zapcore.Core) (*zap.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	stderr := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level)
	cores := append([]zapcore.Core{stderr}, extra...)
	return zap.New(zapcore.NewTee(cores...)), nil
}

// newWireLogger returns a stderr-only logger for JSON-RPC traffic, or nil
// when wire logging is off.
func newWireLogger(cfg config.Config) *zap.Logger {
	if !cfg.Log.Wire {
		return nil
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), zapcore.DebugLevel)
	return zap.New(core).Named("wire")
}

// newEngine creates the reference engine with the configured cache and
// library directories.
func newEngine(cfg config.Config, log *zap.Logger) *driver.Engine {
	var cache *driver.DiskCache
	if cfg.Cache.Enabled {
		var err error
		if cfg.Cache.Dir != "" {
			cache, err = driver.OpenDiskCacheAt(cfg.Cache.Dir)
		} else {
			cache, err = driver.OpenDiskCache("arendls")
		}
		if err != nil {
			log.Warn("parse cache disabled", zap.Error(err))
			cache = nil
		}
	}
	eng := driver.New(driver.Options{Log: log.Named("engine"), Cache: cache})
	for _, dir := range cfg.Libraries.Dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			log.Warn("ignoring library directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		eng.AddLibraryDirectory(abs)
	}
	return eng
}

func colorEnabled(cmd *cobra.Command) (bool, error) {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "", "auto":
		return isTerminal(os.Stdout), nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
}
