package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arendls/internal/config"
	"arendls/internal/lsp"
	"arendls/internal/metrics"
	"arendls/internal/session"
	"arendls/internal/version"
	"arendls/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server",
	Long: `Run the language server over stdio, or over TCP with --client-port
(connect to an editor that listens) or --server-port (listen for the editor).`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	addServeFlags(serveCmd.Flags())
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.IntP("client-port", "c", 0, "connect to the client on this port")
	fs.IntP("server-port", "s", 0, "listen for the client on this port")
	fs.StringP("client-host", "a", "localhost", "host of the client (with --client-port)")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.Bool("watch", false, "watch library directories for changed modules")
	fs.Bool("wire-log", false, "log every JSON-RPC message to stderr")
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Lookup("client-port") == nil {
		return nil
	}
	if flags.Changed("client-port") && flags.Changed("server-port") {
		return fmt.Errorf("--client-port and --server-port are mutually exclusive")
	}
	if flags.Changed("client-port") {
		cfg.Server.ClientPort, _ = flags.GetInt("client-port")
		cfg.Server.ServerPort = 0
	}
	if flags.Changed("server-port") {
		cfg.Server.ServerPort, _ = flags.GetInt("server-port")
		cfg.Server.ClientPort = 0
	}
	if flags.Changed("client-host") {
		cfg.Server.ClientHost, _ = flags.GetString("client-host")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("watch") {
		cfg.Watch.Enabled, _ = flags.GetBool("watch")
	}
	if flags.Changed("wire-log") {
		cfg.Log.Wire, _ = flags.GetBool("wire-log")
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	heartbeat, _ := cmd.Flags().GetDuration("trace-heartbeat")
	ctx, cleanup, err := setupTracing(ctx, cfg.Trace, heartbeat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	client := lsp.NewClient()
	log, err := newLogger(cfg, client.LogCore(level))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	m := metrics.New()
	sess := session.New(session.Options{
		Engine:    newEngine(cfg, log),
		Publisher: client,
		Log:       log.Named("session"),
		Metrics:   m,
	})
	opts := lsp.ServerOptions{
		Session: sess,
		Client:  client,
		Log:     log.Named("lsp"),
		WireLog: newWireLogger(cfg),
		Metrics: m,
		Version: version.Current().Version,
	}

	var watcher *watch.Watcher
	if cfg.Watch.Enabled {
		watcher, err = watch.New(func(ctx context.Context, uris []string) {
			if _, err := sess.FilesChanged(ctx, uris); err != nil {
				log.Warn("file change not processed", zap.Error(err))
			}
		}, watch.Options{
			Debounce: cfg.Watch.Debounce.Duration,
			Ignore:   cfg.Watch.Ignore,
			Log:      log.Named("watch"),
		})
		if err != nil {
			return err
		}
		opts.Watcher = watcher
	}
	srv := lsp.NewServer(opts)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		return serveClient(gctx, srv, cfg.Server, log)
	})
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			log.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
			return m.Serve(gctx, cfg.Metrics.Addr)
		})
	}
	return g.Wait()
}

// serveClient opens the configured transport and serves one client on it.
func serveClient(ctx context.Context, srv *lsp.Server, cfg config.Server, log *zap.Logger) error {
	var (
		rwc io.ReadWriteCloser
		err error
	)
	switch {
	case cfg.ClientPort != 0:
		log.Info("connecting to client", zap.String("host", cfg.ClientHost), zap.Int("port", cfg.ClientPort))
		rwc, err = lsp.Dial(ctx, cfg.ClientHost, cfg.ClientPort)
	case cfg.ServerPort != 0:
		log.Info("waiting for client", zap.Int("port", cfg.ServerPort))
		rwc, err = lsp.Listen(ctx, ":"+strconv.Itoa(cfg.ServerPort))
	default:
		rwc = lsp.Stdio()
	}
	if err != nil {
		return err
	}
	defer rwc.Close()

	err = srv.Serve(ctx, rwc)
	switch {
	case err == nil, errors.Is(err, lsp.ErrExit), errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, lsp.ErrExitWithoutShutdown):
		return fmt.Errorf("client exited without shutdown")
	default:
		return err
	}
}
