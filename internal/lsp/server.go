// Package lsp implements the Language Server Protocol surface of buxn-ls:
// the connection state machine, workspace/diagnostics wiring, and the
// navigation and completion request handlers, per spec.md §4.6 and §6.
package lsp

import (
	"context"
	"sync"
	"time"

	"github.com/viant/afs"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/bullno1/buxn-ls/internal/analysis"
	"github.com/bullno1/buxn-ls/internal/assembler"
	"github.com/bullno1/buxn-ls/internal/graph"
	"github.com/bullno1/buxn-ls/internal/workspace"
)

// debounceDelay is spec.md §4.6's idle window after the last
// textDocument/* notification before an analysis run fires.
const debounceDelay = 200 * time.Millisecond

// Server is the buxn-ls LSP server: workspace state, the two generational
// symbol-graph arenas, and the analysis driver that rebuilds them, wired
// together per spec.md §4.6's connection state machine.
//
// Every field below mu is only ever touched while holding it; this is the
// "no locking because there is no parallelism" claim of spec.md §5 made
// real, since the debounce timer fires on its own goroutine.
type Server struct {
	logger    *zap.Logger
	assembler assembler.Assembler
	disk      afs.Service

	mu        sync.Mutex
	connState connState
	client    protocol.Client
	closeFn   func() error

	rootDir     string
	ws          *workspace.Workspace
	generations *graph.Generations
	driver      *analysis.Driver

	shuttingDown  bool
	debounceTimer *time.Timer
	lastPublished map[string]bool
}

// New constructs a Server. asm is the assembler collaborator (spec.md §1,
// an out-of-scope external interface obligation); disk is typically
// afs.New() and may be nil.
func New(logger *zap.Logger, asm assembler.Assembler, disk afs.Service) *Server {
	if disk == nil {
		disk = afs.New()
	}
	return &Server{
		logger:        logger,
		assembler:     asm,
		disk:          disk,
		lastPublished: make(map[string]bool),
	}
}

// attach wires the server to its connection once a transport has
// established one (internal/lsp/transport.go).
func (s *Server) attach(client protocol.Client, closeFn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
	s.closeFn = closeFn
}

// setLogger swaps in the dual-sink logger built once a client connection
// exists (internal/lsp/transport.go), replacing the stderr-only logger
// New was constructed with.
func (s *Server) setLogger(logger *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// resetConnState rearms the connection state machine for a fresh
// connection, per spec.md §6's "server" mode reusing one Server across
// sequential connections.
func (s *Server) resetConnState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connState = connAwaitingInitialize
}

func (s *Server) closeConnection() {
	s.mu.Lock()
	fn := s.closeFn
	s.mu.Unlock()
	if fn != nil {
		_ = fn()
	}
}

// sigilChars are the addressing-mode sigils that should retrigger
// completion as the user types them, per the GLOSSARY's sigil list.
var sigilChars = []string{";", ",", ".", "/", "&", "|", "$", "!", "?", "=", "-", "_"}

// Initialize handles the initialize request, per spec.md §4.6 step 2.
func (s *Server) Initialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	root := rootDirFromParams(params)
	if root == "" {
		return nil, jsonrpc2.NewError(invalidParamsCode, "no usable workspace root in workspaceFolders/rootUri/rootPath")
	}

	s.mu.Lock()
	s.rootDir = root
	s.ws = workspace.New(s.logger, root)
	s.generations = graph.NewGenerations()
	s.driver = analysis.New(s.logger, s.ws, s.generations, s.assembler, s.disk, root)
	s.mu.Unlock()

	s.logger.Info("initialize", zap.String("root", root))

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			DefinitionProvider:      true,
			ReferencesProvider:      true,
			HoverProvider:           true,
			DocumentSymbolProvider:  true,
			WorkspaceSymbolProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: sigilChars,
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "buxn-ls",
			Version: "0.1.0",
		},
	}, nil
}

// rootDirFromParams picks the first of workspaceFolders[0].uri, rootUri,
// rootPath that resolves to a filesystem path, per spec.md §4.6 step 2.
func rootDirFromParams(params *protocol.InitializeParams) string {
	for _, folder := range params.WorkspaceFolders {
		if path := uri.URI(folder.URI).Filename(); path != "" {
			return path
		}
	}
	if params.RootURI != "" {
		if path := uri.URI(params.RootURI).Filename(); path != "" {
			return path
		}
	}
	return params.RootPath
}

// Initialized handles the initialized notification.
func (s *Server) Initialized(_ context.Context, _ *protocol.InitializedParams) error {
	s.logger.Info("initialized")
	return nil
}

// Shutdown cancels pending analysis and stops arming new debounce timers,
// per spec.md §4.6/§5.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info("shutdown")

	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()

	s.cancelDebounce()
	return nil
}

// Exit handles the exit notification; the transport layer tears down the
// connection once this returns (dispatch.go's handleExit).
func (s *Server) Exit(_ context.Context) error {
	s.logger.Info("exit")
	return nil
}

// DidOpen registers a document's full text and arms the debounce timer.
func (s *Server) DidOpen(_ context.Context, params *protocol.DidOpenTextDocumentParams) error {
	path, ok := s.resolveOrWarn(params.TextDocument.URI)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.ws.DidOpen(path, params.TextDocument.Text)
	s.mu.Unlock()

	s.armDebounce()
	return nil
}

// DidChange replaces a document's text with the last content change's
// text, per spec.md §4.1's full-document-sync contract.
func (s *Server) DidChange(_ context.Context, params *protocol.DidChangeTextDocumentParams) error {
	path, ok := s.resolveOrWarn(params.TextDocument.URI)
	if !ok {
		return nil
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}

	text := params.ContentChanges[len(params.ContentChanges)-1].Text

	s.mu.Lock()
	s.ws.DidChange(path, text)
	s.mu.Unlock()

	s.armDebounce()
	return nil
}

// DidClose forgets a document's text and arms the debounce timer so the
// next analysis run reflects the file's removal from the open set.
func (s *Server) DidClose(_ context.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, ok := s.resolveOrWarn(params.TextDocument.URI)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.ws.DidClose(path)
	s.mu.Unlock()

	s.armDebounce()
	return nil
}

func (s *Server) resolveOrWarn(docURI protocol.DocumentURI) (string, bool) {
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()

	if ws == nil {
		return "", false
	}
	return ws.ResolveURI(docURI)
}
