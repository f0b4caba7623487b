package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"arendls/internal/config"
	"arendls/internal/trace"
)

// setupTracing attaches the configured tracer to ctx. The returned cleanup
// flushes and closes it.
func setupTracing(ctx context.Context, cfg config.Trace, heartbeat time.Duration, errOut io.Writer) (context.Context, func(), error) {
	level, err := trace.ParseLevel(cfg.Level)
	if err != nil {
		return ctx, nil, err
	}
	if level == trace.LevelOff {
		return trace.WithTracer(ctx, trace.Nop), func() {}, nil
	}
	modeStr := cfg.Mode
	if modeStr == "" {
		modeStr = "stream"
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return ctx, nil, err
	}
	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: cfg.Output,
		RingSize:   cfg.RingSize,
		Heartbeat:  heartbeat,
	})
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	var hb *trace.Heartbeat
	if heartbeat > 0 {
		hb = trace.StartHeartbeat(tracer, heartbeat)
	}
	cleanup := func() {
		if hb != nil {
			hb.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(errOut, "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(errOut, "trace: close error: %v\n", err)
		}
	}
	return trace.WithTracer(ctx, tracer), cleanup, nil
}
