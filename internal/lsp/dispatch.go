package lsp

import (
	"context"
	"encoding/json"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// connState tracks spec.md §4.6's connection lifecycle, independent of
// Server's workspace/graph state (which only exists from Initialize on).
type connState int

const (
	connAwaitingInitialize connState = iota
	connAwaitingInitialized
	connRunning
	connTerminated
)

const (
	invalidRequestCode = jsonrpc2.InvalidRequest
	methodNotFoundCode = jsonrpc2.MethodNotFound
	invalidParamsCode  = jsonrpc2.InvalidParams
)

// Handle is the jsonrpc2.Handler for a connection. It enforces spec.md
// §4.6's state machine on top of the per-method handlers defined across
// server.go, navigation.go, completion.go and diagnostics.go: initialize
// must come first, any other request before it is a fatal protocol error,
// any notification other than exit is dropped, and unknown methods in the
// running state reply "method not found" without affecting the connection.
func (s *Server) Handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	method := req.Method()

	s.mu.Lock()
	state := s.connState
	s.mu.Unlock()

	if state == connAwaitingInitialize && method != "initialize" {
		if method == "exit" {
			return s.handleExit(ctx, reply)
		}
		if req.IsNotify() {
			return reply(ctx, nil, nil)
		}
		err := reply(ctx, nil, jsonrpc2.NewError(invalidRequestCode, "expected initialize request first"))
		s.closeConnection()
		return err
	}

	switch method {
	case "initialize":
		var params protocol.InitializeParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, jsonrpc2.NewError(invalidParamsCode, err.Error()))
		}
		result, err := s.Initialize(ctx, &params)
		s.mu.Lock()
		if err == nil {
			s.connState = connAwaitingInitialized
		}
		s.mu.Unlock()
		replyErr := reply(ctx, result, err)
		if err != nil {
			s.closeConnection()
		}
		return replyErr

	case "initialized":
		s.mu.Lock()
		s.connState = connRunning
		s.mu.Unlock()
		err := s.Initialized(ctx, &protocol.InitializedParams{})
		return reply(ctx, nil, err)

	case "shutdown":
		err := s.Shutdown(ctx)
		return reply(ctx, nil, err)

	case "exit":
		return s.handleExit(ctx, reply)

	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			s.logger.Warn("malformed didOpen params", zap.Error(err))
			return reply(ctx, nil, nil)
		}
		_ = s.DidOpen(ctx, &params)
		return reply(ctx, nil, nil)

	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			s.logger.Warn("malformed didChange params", zap.Error(err))
			return reply(ctx, nil, nil)
		}
		_ = s.DidChange(ctx, &params)
		return reply(ctx, nil, nil)

	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			s.logger.Warn("malformed didClose params", zap.Error(err))
			return reply(ctx, nil, nil)
		}
		_ = s.DidClose(ctx, &params)
		return reply(ctx, nil, nil)

	case "textDocument/definition":
		var params protocol.DefinitionParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, jsonrpc2.NewError(invalidParamsCode, err.Error()))
		}
		result, err := s.Definition(ctx, &params)
		return reply(ctx, result, err)

	case "textDocument/references":
		var params protocol.ReferenceParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, jsonrpc2.NewError(invalidParamsCode, err.Error()))
		}
		result, err := s.References(ctx, &params)
		return reply(ctx, result, err)

	case "textDocument/hover":
		var params protocol.HoverParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, jsonrpc2.NewError(invalidParamsCode, err.Error()))
		}
		result, err := s.Hover(ctx, &params)
		return reply(ctx, result, err)

	case "textDocument/documentSymbol":
		var params protocol.DocumentSymbolParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, jsonrpc2.NewError(invalidParamsCode, err.Error()))
		}
		result, err := s.DocumentSymbol(ctx, &params)
		return reply(ctx, result, err)

	case "textDocument/completion":
		var params protocol.CompletionParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, jsonrpc2.NewError(invalidParamsCode, err.Error()))
		}
		result, err := s.Completion(ctx, &params)
		return reply(ctx, result, err)

	case "workspace/symbol":
		var params protocol.WorkspaceSymbolParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, jsonrpc2.NewError(invalidParamsCode, err.Error()))
		}
		result, err := s.Symbol(ctx, &params)
		return reply(ctx, result, err)

	default:
		if req.IsNotify() {
			return reply(ctx, nil, nil)
		}
		s.logger.Warn("unknown method", zap.String("method", method))
		return reply(ctx, nil, jsonrpc2.NewError(methodNotFoundCode, "method not found: "+method))
	}
}

func (s *Server) handleExit(ctx context.Context, reply jsonrpc2.Replier) error {
	s.mu.Lock()
	s.connState = connTerminated
	s.mu.Unlock()

	s.cancelDebounce()
	_ = s.Exit(ctx)

	err := reply(ctx, nil, nil)
	s.closeConnection()
	return err
}
