package lsp

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"arendls/internal/driver"
	"arendls/internal/session"
	"arendls/internal/workspace"
)

// inbox records what the server sends to the editor.
type inbox struct {
	mu    sync.Mutex
	notes []*jsonrpc2.Request
}

func (in *inbox) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	in.mu.Lock()
	in.notes = append(in.notes, req)
	in.mu.Unlock()
	return nil, nil
}

func (in *inbox) params(method string) []json.RawMessage {
	in.mu.Lock()
	defer in.mu.Unlock()
	var out []json.RawMessage
	for _, r := range in.notes {
		if r.Method == method && r.Params != nil {
			out = append(out, *r.Params)
		}
	}
	return out
}

type fixture struct {
	conn  *jsonrpc2.Conn
	inbox *inbox
	done  chan error
}

func serve(t *testing.T, watcher ...Watcher) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	client := NewClient()
	log := zap.New(client.LogCore(zapcore.InfoLevel))
	sess := session.New(session.Options{
		Engine:    driver.New(driver.Options{}),
		Publisher: client,
		Log:       log,
	})
	go func() { _ = sess.Run(ctx) }()
	opts := ServerOptions{Session: sess, Client: client, Log: log, Version: "test"}
	if len(watcher) > 0 {
		opts.Watcher = watcher[0]
	}
	srv := NewServer(opts)

	server, editor := net.Pipe()
	f := &fixture{inbox: &inbox{}, done: make(chan error, 1)}
	go func() { f.done <- srv.Serve(ctx, server) }()
	f.conn = jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(editor, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(f.inbox.handle))

	t.Cleanup(func() {
		_ = f.conn.Close()
		cancel()
	})
	return f
}

func (f *fixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
		return nil
	}
}

func library(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "lib")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "arend.yaml"), []byte("sourcesDir: src"), 0o644))
	for name, text := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, "src", name), []byte(text), 0o644))
	}
	return root
}

func initialize(t *testing.T, f *fixture, root string, linkSupport bool) initializeResult {
	t.Helper()
	params := map[string]any{
		"rootUri": workspace.FromPath(root),
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"definition": map[string]any{"linkSupport": linkSupport},
			},
		},
	}
	var res initializeResult
	require.NoError(t, f.conn.Call(context.Background(), "initialize", params, &res))
	return res
}

type roots struct {
	mu    sync.Mutex
	paths []string
}

func (r *roots) Add(root string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, root)
	return nil
}

func TestInitializeAdvertisesCapabilities(t *testing.T) {
	w := &roots{}
	f := serve(t, w)
	root := library(t, map[string]string{"A.ard": `\func a => 0`})
	res := initialize(t, f, root, false)
	w.mu.Lock()
	assert.Equal(t, []string{root}, w.paths, "registered libraries are watched")
	w.mu.Unlock()

	assert.Equal(t, "arendls", res.ServerInfo.Name)
	assert.Equal(t, "test", res.ServerInfo.Version)
	assert.True(t, res.Capabilities.DefinitionProvider)
	assert.Equal(t, int(protocol.TextDocumentSyncKindNone), res.Capabilities.TextDocumentSync)
	require.NotNil(t, res.Capabilities.CompletionProvider)
	assert.True(t, res.Capabilities.CompletionProvider.ResolveProvider)
	assert.Len(t, res.Capabilities.CompletionProvider.TriggerCharacters, len(triggerCharacters))
	assert.Contains(t, res.Capabilities.CompletionProvider.TriggerCharacters, ".")
	require.NotNil(t, res.Capabilities.Workspace)
	assert.True(t, res.Capabilities.Workspace.WorkspaceFolders.ChangeNotifications)
}

func TestDiagnosticsAndLogsReachTheEditor(t *testing.T) {
	f := serve(t)
	root := library(t, map[string]string{"A.ard": `\func a => missing`})
	initialize(t, f, root, false)

	require.Eventually(t, func() bool {
		return len(f.inbox.params("textDocument/publishDiagnostics")) == 1
	}, 5*time.Second, 10*time.Millisecond)
	var pub protocol.PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(f.inbox.params("textDocument/publishDiagnostics")[0], &pub))
	assert.Equal(t, workspace.FromPath(filepath.Join(root, "src", "A.ard")), string(pub.URI))
	require.Len(t, pub.Diagnostics, 1)
	assert.Equal(t, protocol.DiagnosticSeverityError, pub.Diagnostics[0].Severity)
	assert.Equal(t, "Arend", pub.Diagnostics[0].Source)

	var messages []string
	for _, raw := range f.inbox.params("window/logMessage") {
		var lm protocol.LogMessageParams
		require.NoError(t, json.Unmarshal(raw, &lm))
		messages = append(messages, lm.Message)
	}
	assert.Contains(t, messages, "Found 1 issues in 1 files.")
	assert.True(t, containsPrefix(messages, "Registering library"), "%v", messages)
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func TestDefinitionRequest(t *testing.T) {
	for _, linkSupport := range []bool{true, false} {
		f := serve(t)
		root := library(t, map[string]string{"A.ard": "\\func f => 1\n\\func g => f"})
		initialize(t, f, root, linkSupport)
		uri := workspace.FromPath(filepath.Join(root, "src", "A.ard"))

		params := map[string]any{
			"textDocument": map[string]any{"uri": uri},
			"position":     map[string]any{"line": 1, "character": 11},
		}
		want := protocol.Range{
			Start: protocol.Position{Line: 0, Character: 6},
			End:   protocol.Position{Line: 0, Character: 7},
		}
		if linkSupport {
			var links []protocol.LocationLink
			require.NoError(t, f.conn.Call(context.Background(), "textDocument/definition", params, &links))
			require.Len(t, links, 1)
			assert.Equal(t, uri, string(links[0].TargetURI))
			assert.Equal(t, want, links[0].TargetRange)
		} else {
			var locs []protocol.Location
			require.NoError(t, f.conn.Call(context.Background(), "textDocument/definition", params, &locs))
			require.Len(t, locs, 1)
			assert.Equal(t, want, locs[0].Range)
		}
	}
}

func TestCompletionReturnsEmptyList(t *testing.T) {
	f := serve(t)
	root := library(t, map[string]string{"A.ard": `\func a => 0`})
	initialize(t, f, root, false)

	params := map[string]any{
		"textDocument": map[string]any{"uri": workspace.FromPath(filepath.Join(root, "src", "A.ard"))},
		"position":     map[string]any{"line": 0, "character": 3},
	}
	var items []protocol.CompletionItem
	require.NoError(t, f.conn.Call(context.Background(), "textDocument/completion", params, &items))
	assert.NotNil(t, items)
	assert.Empty(t, items)

	var item map[string]any
	require.NoError(t, f.conn.Call(context.Background(), "completionItem/resolve", map[string]any{"label": "zero"}, &item))
	assert.Equal(t, "zero", item["label"])
}

func TestUnknownMethod(t *testing.T) {
	f := serve(t)
	err := f.conn.Call(context.Background(), "textDocument/hover", map[string]any{}, nil)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
}

func TestMissingParams(t *testing.T) {
	f := serve(t)
	err := f.conn.Call(context.Background(), "textDocument/definition", nil, nil)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
}

func TestShutdownThenExit(t *testing.T) {
	f := serve(t)
	require.NoError(t, f.conn.Call(context.Background(), "shutdown", nil, nil))
	require.NoError(t, f.conn.Notify(context.Background(), "exit", nil))
	assert.ErrorIs(t, f.wait(t), ErrExit)
}

func TestExitWithoutShutdown(t *testing.T) {
	f := serve(t)
	require.NoError(t, f.conn.Notify(context.Background(), "exit", nil))
	assert.ErrorIs(t, f.wait(t), ErrExitWithoutShutdown)
}

func TestFileChangeNotification(t *testing.T) {
	f := serve(t)
	root := library(t, map[string]string{"A.ard": `\func a => missing`})
	initialize(t, f, root, false)
	file := filepath.Join(root, "src", "A.ard")
	require.Eventually(t, func() bool {
		return len(f.inbox.params("textDocument/publishDiagnostics")) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(file, []byte(`\func a => 0`), 0o644))
	require.NoError(t, f.conn.Notify(context.Background(), "workspace/didChangeWatchedFiles", map[string]any{
		"changes": []map[string]any{{"uri": workspace.FromPath(file), "type": 2}},
	}))

	require.Eventually(t, func() bool {
		return len(f.inbox.params("textDocument/publishDiagnostics")) == 2
	}, 5*time.Second, 10*time.Millisecond)
	var pub protocol.PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(f.inbox.params("textDocument/publishDiagnostics")[1], &pub))
	assert.Equal(t, workspace.FromPath(file), string(pub.URI))
	assert.Empty(t, pub.Diagnostics)
}
