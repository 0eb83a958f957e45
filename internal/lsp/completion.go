package lsp

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/bullno1/buxn-ls/internal/completion"
	"github.com/bullno1/buxn-ls/internal/position"
)

// Completion cancels the pending debounce timer (the buffer is mid-edit and
// must not be analyzed by a stale scheduled run, per spec.md §4.6), then
// resolves the token under the cursor and dispatches to internal/completion.
func (s *Server) Completion(_ context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	s.cancelDebounce()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations == nil || s.ws == nil {
		return &protocol.CompletionList{}, nil
	}

	path, ok := s.ws.ResolveURI(params.TextDocument.URI)
	if !ok {
		return &protocol.CompletionList{}, nil
	}
	doc, ok := s.ws.Get(path)
	if !ok {
		return &protocol.CompletionList{}, nil
	}

	ctx := s.generations.Current()
	sourceID, ok := ctx.SourceByPath(path)
	if !ok {
		return &protocol.CompletionList{}, nil
	}

	table := position.NewTable(doc.Text)
	cursorOffset := table.ToByteOffset(toInternalPosition(params.Position))

	prefixStart, prefix := scanPrefix(doc.Text, cursorOffset)

	items := completion.Complete(ctx, table, completion.Request{
		ActiveSource: sourceID,
		CursorOffset: cursorOffset,
		PrefixStart:  prefixStart,
		Prefix:       prefix,
	})

	lspItems := make([]protocol.CompletionItem, 0, len(items))
	for _, item := range items {
		lspItems = append(lspItems, completion.Serialize(item))
	}

	return &protocol.CompletionList{IsIncomplete: false, Items: lspItems}, nil
}

// scanPrefix walks back from cursorOffset over a maximal run of
// non-whitespace bytes: the completion engine's token boundary, since Uxn
// assembly tokens are delimited by whitespace.
func scanPrefix(content string, cursorOffset int) (start int, prefix string) {
	end := cursorOffset
	if end > len(content) {
		end = len(content)
	}
	if end < 0 {
		end = 0
	}

	start = end
	for start > 0 && !isTokenBreak(content[start-1]) {
		start--
	}

	return start, content[start:end]
}

func isTokenBreak(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
