package lsp

import (
	"context"
	"strings"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap/zapcore"
)

// Client sends notifications to the connected editor. Before a connection is
// attached, and after it is gone, notifications are dropped.
type Client struct {
	mu   sync.RWMutex
	conn *jsonrpc2.Conn
}

// NewClient returns a client with no connection.
func NewClient() *Client { return &Client{} }

// Attach routes notifications to conn.
func (c *Client) Attach(conn *jsonrpc2.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// Detach stops sending notifications.
func (c *Client) Detach() {
	c.Attach(nil)
}

func (c *Client) current() *jsonrpc2.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Attached reports whether a connection is attached.
func (c *Client) Attached() bool { return c.current() != nil }

func (c *Client) notify(ctx context.Context, method string, params any) error {
	conn := c.current()
	if conn == nil {
		return nil
	}
	return conn.Notify(ctx, method, params)
}

// PublishDiagnostics sends textDocument/publishDiagnostics.
func (c *Client) PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error {
	return c.notify(ctx, "textDocument/publishDiagnostics", params)
}

// LogMessage sends window/logMessage.
func (c *Client) LogMessage(ctx context.Context, params *protocol.LogMessageParams) error {
	return c.notify(ctx, "window/logMessage", params)
}

// LogCore returns a zap core that forwards entries at or above level to the
// editor's log window.
func (c *Client) LogCore(level zapcore.LevelEnabler) zapcore.Core {
	cfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return &logCore{LevelEnabler: level, client: c, enc: zapcore.NewConsoleEncoder(cfg)}
}

type logCore struct {
	zapcore.LevelEnabler
	client *Client
	enc    zapcore.Encoder
}

func (l *logCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &logCore{LevelEnabler: l.LevelEnabler, client: l.client, enc: l.enc.Clone()}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (l *logCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if l.Enabled(ent.Level) && l.client.Attached() {
		return ce.AddCore(ent, l)
	}
	return ce
}

func (l *logCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := l.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := strings.TrimRight(buf.String(), "\n")
	buf.Free()
	return l.client.LogMessage(context.Background(), &protocol.LogMessageParams{
		Type:    messageType(ent.Level),
		Message: msg,
	})
}

func (l *logCore) Sync() error { return nil }

func messageType(level zapcore.Level) protocol.MessageType {
	switch {
	case level >= zapcore.ErrorLevel:
		return protocol.MessageTypeError
	case level == zapcore.WarnLevel:
		return protocol.MessageTypeWarning
	case level == zapcore.InfoLevel:
		return protocol.MessageTypeInfo
	default:
		return protocol.MessageTypeLog
	}
}
