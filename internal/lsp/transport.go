package lsp

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
)

// Stdio returns the process's standard input and output as one stream.
// Closing it leaves both open.
func Stdio() io.ReadWriteCloser { return stdio{} }

type stdio struct{}

func (stdio) Read(p []byte) (int, error) {
	n, err := os.Stdin.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read stdin: %w", err)
	}
	return n, err
}

func (stdio) Write(p []byte) (int, error) {
	n, err := os.Stdout.Write(p)
	if err != nil {
		return n, fmt.Errorf("write stdout: %w", err)
	}
	return n, nil
}

func (stdio) Close() error { return nil }

// Listen waits on addr for a single client and returns its connection. The
// listener is closed once a client connects or ctx ends.
func Listen(ctx context.Context, addr string) (net.Conn, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept on %s: %w", addr, err)
	}
	return conn, nil
}

// Dial connects to a client listening on host:port.
func Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
