// Package lsp adapts the session to the Language Server Protocol over
// JSON-RPC 2.0.
//
// Notifications are handled in order on the connection's read loop.
// Requests are handled on their own goroutines, so a slow go-to-definition
// never blocks file change notifications from being read; the session
// serializes the work itself.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"arendls/internal/definition"
	"arendls/internal/metrics"
	"arendls/internal/session"
	"arendls/internal/trace"
	"arendls/internal/workspace"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configure a Server.
type ServerOptions struct {
	Session *session.Manager
	Client  *Client
	Log     *zap.Logger
	// WireLog receives every message sent and received. It must not forward
	// to the client, or each logged message would produce another one.
	WireLog *zap.Logger
	Metrics *metrics.Metrics
	// Watcher, when set, is told about every registered library root.
	Watcher Watcher
	Name    string
	Version string
}

// Watcher watches directories for changed module files.
type Watcher interface {
	Add(root string) error
}

// Server handles one client connection.
type Server struct {
	sess    *session.Manager
	client  *Client
	log     *zap.Logger
	wireLog *zap.Logger
	metrics *metrics.Metrics
	watcher Watcher
	info    serverInfo
	replier jsonrpc2.Handler

	mu          sync.Mutex
	linkSupport bool
	shutdown    bool
	exitErr     error
}

// NewServer creates a server. A nil Client gets a fresh one.
func NewServer(opts ServerOptions) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		client = NewClient()
	}
	name := opts.Name
	if name == "" {
		name = "arendls"
	}
	s := &Server{
		sess:    opts.Session,
		client:  client,
		log:     log,
		wireLog: opts.WireLog,
		metrics: opts.Metrics,
		watcher: opts.Watcher,
		info:    serverInfo{Name: name, Version: opts.Version},
	}
	s.replier = jsonrpc2.HandlerWithError(s.handleRequest)
	return s
}

// Serve speaks the protocol over rwc until the client disconnects, exit is
// received or ctx is done. It returns ErrExit after a clean shutdown and
// ErrExitWithoutShutdown when the client exits without asking first.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	var opts []jsonrpc2.ConnOpt
	if s.wireLog != nil {
		opts = append(opts,
			jsonrpc2.OnRecv(s.logWire("<--")),
			jsonrpc2.OnSend(s.logWire("-->")))
	}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, s, opts...)

	s.client.Attach(conn)
	defer s.client.Detach()

	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		_ = conn.Close()
		<-conn.DisconnectNotify()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

func (s *Server) logWire(dir string) func(*jsonrpc2.Request, *jsonrpc2.Response) {
	return func(req *jsonrpc2.Request, resp *jsonrpc2.Response) {
		switch {
		case req != nil && resp == nil:
			s.wireLog.Debug(dir+" "+req.Method, zap.Stringer("id", req.ID), zap.Bool("notification", req.Notif))
		case resp != nil:
			fields := []zap.Field{zap.Stringer("id", resp.ID)}
			if resp.Error != nil {
				fields = append(fields, zap.Int64("code", resp.Error.Code), zap.String("error", resp.Error.Message))
			}
			s.wireLog.Debug(dir+" response", fields...)
		}
	}
}

// Handle implements jsonrpc2.Handler.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	s.metrics.Request(req.Method)
	if req.Notif {
		s.handleNotification(ctx, conn, req)
		return
	}
	go s.replier.Handle(ctx, conn, req)
}

func decode(req *jsonrpc2.Request, v any) error {
	if req.Params == nil || string(*req.Params) == "null" {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func internalError(err error) error {
	if errors.Is(err, session.ErrClosed) || errors.Is(err, context.Canceled) {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
	return err
}

func (s *Server) handleRequest(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	ctx, span := trace.Start(ctx, trace.ScopeRequest, req.Method)
	defer span.End("")

	s.mu.Lock()
	shutdown := s.shutdown
	s.mu.Unlock()
	if shutdown && req.Method != "shutdown" {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server is shutting down"}
	}

	switch req.Method {
	case "initialize":
		return s.initialize(ctx, req)
	case "shutdown":
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil
	case "textDocument/definition":
		return s.definition(ctx, req)
	case "textDocument/completion":
		return s.completion(ctx, req)
	case "completionItem/resolve":
		var item json.RawMessage
		if err := decode(req, &item); err != nil {
			return nil, err
		}
		return item, nil
	default:
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		}
	}
}

func (s *Server) initialize(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params initializeParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.linkSupport = params.Capabilities.TextDocument.Definition.LinkSupport
	s.mu.Unlock()

	var roots []string
	for _, f := range params.WorkspaceFolders {
		roots = append(roots, workspace.ToPath(f.URI))
	}
	if len(roots) == 0 {
		switch {
		case params.RootURI != "":
			roots = append(roots, workspace.ToPath(params.RootURI))
		case params.RootPath != "":
			roots = append(roots, params.RootPath)
		}
	}
	for _, root := range roots {
		s.log.Info("Registering library", zap.String("root", root))
		if err := s.sess.RegisterLibrary(ctx, root); err != nil {
			return nil, internalError(err)
		}
	}
	if _, err := s.sess.Reload(ctx); err != nil {
		return nil, internalError(err)
	}
	s.watchLibraries(ctx)
	return initializeResult{Capabilities: capabilities(), ServerInfo: s.info}, nil
}

func (s *Server) definition(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params protocol.DefinitionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	var links []protocol.LocationLink
	err := s.sess.Query(ctx, func(v session.View) {
		links = definition.Resolve(v, string(params.TextDocument.URI), params.Position, s.log)
	})
	if err != nil {
		return nil, internalError(err)
	}
	s.mu.Lock()
	linkSupport := s.linkSupport
	s.mu.Unlock()
	if linkSupport {
		return links, nil
	}
	return definition.Locations(links), nil
}

func (s *Server) completion(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params protocol.CompletionParams
	if err := decode(req, &params); err != nil {
		return nil, err
	}
	uri := string(params.TextDocument.URI)
	err := s.sess.Query(ctx, func(v session.View) {
		d, ok := v.Describe(uri)
		if !ok {
			return
		}
		g := d.Library.ModuleGroup(d.Module, d.InTests)
		if g == nil {
			return
		}
		s.log.Debug("completion requested",
			zap.Stringer("module", d.Module),
			zap.Int("declarations", len(g.Decls())),
			zap.Int("namespaceCommands", len(g.Namespace)))
	})
	if err != nil {
		return nil, internalError(err)
	}
	return []protocol.CompletionItem{}, nil
}

func (s *Server) handleNotification(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	ctx, span := trace.Start(ctx, trace.ScopeRequest, req.Method)
	defer span.End("")

	switch req.Method {
	case "initialized":
		s.log.Debug("client initialized")
	case "exit":
		s.mu.Lock()
		if s.shutdown {
			s.exitErr = ErrExit
		} else {
			s.exitErr = ErrExitWithoutShutdown
		}
		s.mu.Unlock()
		_ = conn.Close()
	case "workspace/didChangeWatchedFiles":
		var params protocol.DidChangeWatchedFilesParams
		if err := decode(req, &params); err != nil {
			s.log.Warn("invalid didChangeWatchedFiles params", zap.Error(err))
			return
		}
		uris := make([]string, 0, len(params.Changes))
		for _, ch := range params.Changes {
			uris = append(uris, string(ch.URI))
		}
		if _, err := s.sess.FilesChanged(ctx, uris); err != nil {
			s.log.Warn("file change not processed", zap.Error(err))
		}
	case "workspace/didChangeWorkspaceFolders":
		var params didChangeWorkspaceFoldersParams
		if err := decode(req, &params); err != nil {
			s.log.Warn("invalid didChangeWorkspaceFolders params", zap.Error(err))
			return
		}
		if err := s.sess.RemoveWorkspaceFolders(ctx, folderPaths(params.Event.Removed)); err != nil {
			s.log.Warn("workspace folder removal not processed", zap.Error(err))
		}
		if added := folderPaths(params.Event.Added); len(added) > 0 {
			if _, err := s.sess.AddWorkspaceFolders(ctx, added); err != nil {
				s.log.Warn("workspace folders not added", zap.Error(err))
			}
			s.watchLibraries(ctx)
		}
	case "workspace/didChangeConfiguration",
		"textDocument/didOpen",
		"textDocument/didChange",
		"textDocument/didClose",
		"textDocument/didSave":
		s.log.Debug("ignored notification", zap.String("method", req.Method))
	case "$/cancelRequest", "$/setTrace":
	default:
		s.log.Debug("unknown notification", zap.String("method", req.Method))
	}
}

func (s *Server) watchLibraries(ctx context.Context) {
	if s.watcher == nil {
		return
	}
	libs, err := s.sess.Libraries(ctx)
	if err != nil {
		return
	}
	for _, lib := range libs {
		if err := s.watcher.Add(lib.Root); err != nil {
			s.log.Warn("Cannot watch library", zap.String("root", lib.Root), zap.Error(err))
		}
	}
}

func folderPaths(folders []workspaceFolder) []string {
	out := make([]string, 0, len(folders))
	for _, f := range folders {
		out = append(out, workspace.ToPath(f.URI))
	}
	return out
}
