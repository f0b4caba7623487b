package lsp

import "go.lsp.dev/protocol"

// triggerCharacters are the completion trigger characters advertised to
// clients: every ASCII letter plus the operator characters of the language.
const triggerCharacters = "QWERTYUIOPASDFGHJKLZXCVBNM.qwertyuiopasdfghjklzxcvbnm+-*/_[]:"

type initializeParams struct {
	RootURI          string            `json:"rootUri,omitempty"`
	RootPath         string            `json:"rootPath,omitempty"`
	WorkspaceFolders []workspaceFolder `json:"workspaceFolders,omitempty"`
	Capabilities     clientCapabilities `json:"capabilities"`
}

type clientCapabilities struct {
	TextDocument struct {
		Definition struct {
			LinkSupport bool `json:"linkSupport"`
		} `json:"definition"`
	} `json:"textDocument"`
}

type workspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type didChangeWorkspaceFoldersParams struct {
	Event struct {
		Added   []workspaceFolder `json:"added"`
		Removed []workspaceFolder `json:"removed"`
	} `json:"event"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
	ServerInfo   serverInfo         `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type serverCapabilities struct {
	// TextDocumentSync is always None: the server reads files from disk.
	TextDocumentSync   int                 `json:"textDocumentSync"`
	CompletionProvider *completionOptions  `json:"completionProvider,omitempty"`
	DefinitionProvider bool                `json:"definitionProvider"`
	Workspace          *workspaceServerCap `json:"workspace,omitempty"`
}

type completionOptions struct {
	ResolveProvider   bool     `json:"resolveProvider"`
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

type workspaceServerCap struct {
	WorkspaceFolders workspaceFoldersCap `json:"workspaceFolders"`
}

type workspaceFoldersCap struct {
	Supported           bool `json:"supported"`
	ChangeNotifications bool `json:"changeNotifications"`
}

func capabilities() serverCapabilities {
	triggers := make([]string, 0, len(triggerCharacters))
	for _, r := range triggerCharacters {
		triggers = append(triggers, string(r))
	}
	return serverCapabilities{
		TextDocumentSync: int(protocol.TextDocumentSyncKindNone),
		CompletionProvider: &completionOptions{
			ResolveProvider:   true,
			TriggerCharacters: triggers,
		},
		DefinitionProvider: true,
		Workspace: &workspaceServerCap{
			WorkspaceFolders: workspaceFoldersCap{Supported: true, ChangeNotifications: true},
		},
	}
}
