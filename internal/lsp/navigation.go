package lsp

import (
	"context"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/bullno1/buxn-ls/internal/graph"
	"github.com/bullno1/buxn-ls/internal/position"
)

// Definition resolves the symbol under the cursor and, if it is a
// reference, follows its single outgoing edge to the definition it names,
// per spec.md §8's "reference symbol nodes have exactly one outgoing edge
// to a definition" invariant.
func (s *Server) Definition(_ context.Context, params *protocol.DefinitionParams) (*protocol.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations == nil {
		return nil, nil
	}

	sym := s.symbolAtPositionLocked(params.TextDocument.URI, params.Position)
	if sym == nil {
		return nil, nil
	}

	target := sym
	if sym.Kind.IsReference() {
		resolved := s.resolveReferenceLocked(sym)
		if resolved == nil {
			return nil, nil
		}
		target = resolved
	}

	return s.locationOfLocked(target), nil
}

// References returns every reference pointing at the definition the cursor
// overlaps (or, if the cursor sits on a reference, at that reference's own
// target).
func (s *Server) References(_ context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations == nil {
		return nil, nil
	}

	sym := s.symbolAtPositionLocked(params.TextDocument.URI, params.Position)
	if sym == nil {
		return nil, nil
	}

	def := sym
	if sym.Kind.IsReference() {
		if resolved := s.resolveReferenceLocked(sym); resolved != nil {
			def = resolved
		}
	}

	ctx := s.generations.Current()
	var locations []protocol.Location
	for _, edgeID := range def.InEdges() {
		edge := ctx.Edge(edgeID)
		if edge.From.Kind != graph.NodeKindSymbol {
			continue
		}
		refSym := ctx.Symbol(edge.From.ID)
		if refSym == nil {
			continue
		}
		if loc := s.locationOfLocked(refSym); loc != nil {
			locations = append(locations, *loc)
		}
	}
	return locations, nil
}

// Hover returns the single source line of the hovered definition, together
// with its range, per spec.md §4.6's hover contract.
func (s *Server) Hover(_ context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations == nil {
		return nil, nil
	}

	sym := s.symbolAtPositionLocked(params.TextDocument.URI, params.Position)
	if sym == nil {
		return nil, nil
	}

	def := sym
	if sym.Kind.IsReference() {
		if resolved := s.resolveReferenceLocked(sym); resolved != nil {
			def = resolved
		}
	}

	ctx := s.generations.Current()
	src := ctx.Source(def.Source)
	if src == nil {
		return nil, nil
	}

	doc, ok := s.ws.Get(src.Path)
	if !ok {
		return nil, nil
	}

	table := position.NewTable(doc.Text)
	line := table.Line(def.Range.Start.Line)
	rng := toProtocolRange(def.Range)

	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.PlainText, Value: line},
		Range:    &rng,
	}, nil
}

// DocumentSymbol lists every definition in a document, mapping semantics to
// LSP symbol kinds per spec.md §4.6: VARIABLE→Field, SUBROUTINE→Function,
// DEVICE_PORT→Constant, ENUM→EnumMember.
func (s *Server) DocumentSymbol(_ context.Context, params *protocol.DocumentSymbolParams) ([]protocol.DocumentSymbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations == nil || s.ws == nil {
		return nil, nil
	}

	path, ok := s.ws.ResolveURI(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	ctx := s.generations.Current()
	sourceID, ok := ctx.SourceByPath(path)
	if !ok {
		return nil, nil
	}
	src := ctx.Source(sourceID)
	if src == nil {
		return nil, nil
	}

	symbols := make([]protocol.DocumentSymbol, 0, len(src.Definitions))
	for _, id := range src.Definitions {
		sym := ctx.Symbol(id)
		if sym == nil {
			continue
		}
		rng := toProtocolRange(sym.Range)
		symbols = append(symbols, protocol.DocumentSymbol{
			Name:           sym.Name,
			Kind:           symbolKindFor(sym.Semantics),
			Range:          rng,
			SelectionRange: rng,
		})
	}
	return symbols, nil
}

// Symbol implements workspace/symbol: every definition across the
// workspace whose name starts with the query string.
func (s *Server) Symbol(_ context.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations == nil {
		return nil, nil
	}

	ctx := s.generations.Current()
	var results []protocol.SymbolInformation
	for _, src := range ctx.Sources() {
		for _, id := range src.Definitions {
			sym := ctx.Symbol(id)
			if sym == nil || !strings.HasPrefix(sym.Name, params.Query) {
				continue
			}
			results = append(results, protocol.SymbolInformation{
				Name: sym.Name,
				Kind: symbolKindFor(sym.Semantics),
				Location: protocol.Location{
					URI:   protocol.DocumentURI(src.URI),
					Range: toProtocolRange(sym.Range),
				},
			})
		}
	}
	return results, nil
}

func symbolKindFor(sem graph.Semantics) protocol.SymbolKind {
	switch sem {
	case graph.SemanticsSubroutine:
		return protocol.SymbolKindFunction
	case graph.SemanticsDevicePort:
		return protocol.SymbolKindConstant
	case graph.SemanticsEnum:
		return protocol.SymbolKindEnumMember
	default:
		return protocol.SymbolKindField
	}
}

// symbolAtPositionLocked resolves the document/graph symbol overlapping a
// cursor position. Callers must hold s.mu.
func (s *Server) symbolAtPositionLocked(docURI protocol.DocumentURI, pos protocol.Position) *graph.Symbol {
	if s.ws == nil {
		return nil
	}
	path, ok := s.ws.ResolveURI(docURI)
	if !ok {
		return nil
	}

	ctx := s.generations.Current()
	sourceID, ok := ctx.SourceByPath(path)
	if !ok {
		return nil
	}
	src := ctx.Source(sourceID)
	if src == nil {
		return nil
	}

	target := toInternalPosition(pos)

	if sym := findContaining(ctx, src.References, target); sym != nil {
		return sym
	}
	return findContaining(ctx, src.Definitions, target)
}

func findContaining(ctx *graph.Context, ids []graph.NodeID, target position.Position) *graph.Symbol {
	for _, id := range ids {
		sym := ctx.Symbol(id)
		if sym != nil && rangeContains(sym.Range, target) {
			return sym
		}
	}
	return nil
}

func rangeContains(r position.Range, pos position.Position) bool {
	return position.Compare(pos, r.Start) >= 0 && position.Compare(pos, r.End) < 0
}

// resolveReferenceLocked follows a reference symbol's single outgoing edge
// to its definition. Callers must hold s.mu.
func (s *Server) resolveReferenceLocked(ref *graph.Symbol) *graph.Symbol {
	ctx := s.generations.Current()
	for _, edgeID := range ref.OutEdges() {
		edge := ctx.Edge(edgeID)
		if edge.To.Kind == graph.NodeKindSymbol {
			return ctx.Symbol(edge.To.ID)
		}
	}
	return nil
}

// locationOfLocked builds a protocol.Location for a symbol. Callers must
// hold s.mu.
func (s *Server) locationOfLocked(sym *graph.Symbol) *protocol.Location {
	src := s.generations.Current().Source(sym.Source)
	if src == nil {
		return nil
	}
	return &protocol.Location{
		URI:   protocol.DocumentURI(src.URI),
		Range: toProtocolRange(sym.Range),
	}
}
