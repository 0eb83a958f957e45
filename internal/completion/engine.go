// Package completion implements spec.md §4.5's sigil-driven completion
// engine: given a cursor position and the textual prefix leading up to it,
// it filters and groups symbol-graph definitions into a list of LSP
// completion items.
package completion

import (
	"strings"

	"github.com/bullno1/buxn-ls/internal/analysis"
	"github.com/bullno1/buxn-ls/internal/graph"
	"github.com/bullno1/buxn-ls/internal/position"
)

// MatchType selects which definitions qualify as candidates and how the
// result set is shaped, per spec.md §4.5's sigil table.
type MatchType int

const (
	// MatchNone means the sigil is a declaration context ("&") where no
	// suggestions are ever offered.
	MatchNone MatchType = iota
	// MatchAnyLabel matches every label definition.
	MatchAnyLabel
	// MatchSubroutineOnly matches labels that qualify as subroutines.
	MatchSubroutineOnly
	// MatchZeroPage matches labels whose address is in the zero page.
	MatchZeroPage
	// MatchLocal matches labels sharing the current scope.
	MatchLocal
	// MatchSubLabel matches labels formatted as local names, restricted to
	// subroutine-qualifying ones when Rule.SubroutineOnly is set (the
	// second-byte "&"/"/" override also lands here).
	MatchSubLabel
	// MatchPreceding matches labels defined at or before the cursor.
	MatchPreceding
	// MatchAnySymbol matches labels and macros alike, restricted to ones
	// that qualify as subroutines.
	MatchAnySymbol
)

// Rule is the sigil → (match type, grouping, subroutine-restriction) entry
// of the dispatch table (design note §9: "a dispatch table, not nested
// conditionals").
type Rule struct {
	Match MatchType
	Group bool
	// SubroutineOnly additionally restricts MatchSubLabel to labels that
	// qualify as subroutines. Only the bare "/" sigil sets this; the
	// second-byte override below deliberately does not, since it narrows
	// an arbitrary sigil down to scoped local-name matching without
	// inheriting a subroutine restriction the original sigil may or may
	// not have had.
	SubroutineOnly bool
}

var sigilTable = map[byte]Rule{
	';': {MatchAnyLabel, true, false},
	'=': {MatchAnyLabel, true, false},
	'!': {MatchSubroutineOnly, false, false},
	'?': {MatchSubroutineOnly, false, false},
	'.': {MatchZeroPage, true, false},
	'-': {MatchZeroPage, true, false},
	',': {MatchLocal, false, false},
	'_': {MatchLocal, false, false},
	'/': {MatchSubLabel, false, true},
	'&': {MatchNone, false, false},
	'|': {MatchPreceding, true, false},
	'$': {MatchPreceding, true, false},
}

var otherRule = Rule{MatchAnySymbol, true, false}
var subLabelOverride = Rule{MatchSubLabel, false, false}

// Resolve determines the match rule and the byte offset within prefix
// where the name filter begins, applying the second-byte "&"/"/" override
// (spec.md §4.5: "Second-byte modifier").
func Resolve(prefix string) (rule Rule, anchorOffset int) {
	if prefix == "" {
		return otherRule, 0
	}

	rule, ok := sigilTable[prefix[0]]
	if !ok {
		return otherRule, 0
	}
	if rule.Match == MatchNone {
		return rule, 1
	}

	anchorOffset = 1
	if len(prefix) > 1 && (prefix[1] == '&' || prefix[1] == '/') {
		rule = subLabelOverride
		anchorOffset = 2
	}
	return rule, anchorOffset
}

// Request describes one textDocument/completion call translated into the
// terms the engine operates on.
type Request struct {
	ActiveSource graph.NodeID
	// CursorOffset is the byte offset of the cursor within the active
	// source's content.
	CursorOffset int
	// PrefixStart is the byte offset where Prefix begins; CursorOffset -
	// PrefixStart always equals len(Prefix).
	PrefixStart int
	// Prefix is the bytes from the last whitespace up to the cursor.
	Prefix string
}

// Complete runs the full pipeline: resolve the sigil, collect forward-visit
// candidates, filter, group, and emit serializable items.
func Complete(ctx *graph.Context, lines *position.Table, req Request) []Item {
	rule, anchor := Resolve(req.Prefix)
	if rule.Match == MatchNone {
		return nil
	}

	name := req.Prefix[anchor:]
	scope := CurrentScope(ctx, req.ActiveSource, req.CursorOffset)

	filterPrefix := name
	if rule.Match == MatchLocal || rule.Match == MatchSubLabel {
		filterPrefix = scope + "/" + name
	}

	var candidates []Candidate
	for _, sym := range collectCandidates(ctx, req.ActiveSource) {
		if sym.Kind == graph.KindMacro && sym.Offset >= req.CursorOffset {
			continue // macros cannot be forward-declared
		}
		if !matches(rule, sym, scope, req.CursorOffset) {
			continue
		}
		if !strings.HasPrefix(sym.Name, filterPrefix) {
			continue
		}
		candidates = append(candidates, Candidate{
			Symbol: sym,
			Remote: sym.Source != req.ActiveSource,
		})
	}

	editRange := position.Range{
		Start: lines.FromByteOffset(req.PrefixStart + anchor),
		End:   lines.FromByteOffset(req.CursorOffset),
	}

	groups := GroupCandidates(candidates, rule.Group)
	return Emit(groups, scope, editRange)
}

// collectCandidates performs the forward visit: the active source's own
// definitions, then every source transitively reached through
// source-level out-edges (spec.md §4.5: "Forward visit").
func collectCandidates(ctx *graph.Context, activeSource graph.NodeID) []*graph.Symbol {
	visited := map[graph.NodeID]bool{activeSource: true}
	order := []graph.NodeID{activeSource}

	for i := 0; i < len(order); i++ {
		src := ctx.Source(order[i])
		if src == nil {
			continue
		}
		for _, edgeID := range src.OutEdges() {
			edge := ctx.Edge(edgeID)
			if edge.To.Kind != graph.NodeKindSource || visited[edge.To.ID] {
				continue
			}
			visited[edge.To.ID] = true
			order = append(order, edge.To.ID)
		}
	}

	var out []*graph.Symbol
	for _, id := range order {
		src := ctx.Source(id)
		if src == nil {
			continue
		}
		for _, defID := range src.Definitions {
			if sym := ctx.Symbol(defID); sym != nil {
				out = append(out, sym)
			}
		}
	}
	return out
}

func matches(rule Rule, sym *graph.Symbol, scope string, cursorOffset int) bool {
	switch rule.Match {
	case MatchAnyLabel:
		return sym.Kind == graph.KindLabel
	case MatchSubroutineOnly:
		return sym.Kind == graph.KindLabel && isSubroutineLabel(sym)
	case MatchSubLabel:
		if sym.Kind != graph.KindLabel {
			return false
		}
		return !rule.SubroutineOnly || isSubroutineLabel(sym)
	case MatchZeroPage:
		return sym.Kind == graph.KindLabel && sym.Address <= 0x00FF
	case MatchLocal:
		return sym.Kind == graph.KindLabel && analysis.ScopeOf(sym.Name) == scope
	case MatchPreceding:
		return sym.Kind == graph.KindLabel && sym.Offset <= cursorOffset
	case MatchAnySymbol:
		if sym.Kind == graph.KindMacro {
			return true
		}
		return sym.Kind == graph.KindLabel && isSubroutineLabel(sym)
	default:
		return false
	}
}

// isSubroutineLabel reports whether a label qualifies as a subroutine: an
// explicit stack-effect signature, or a local name starting with ">"
// (spec.md §4.5: "Subroutine = explicit signature OR local name starting
// '>'").
func isSubroutineLabel(sym *graph.Symbol) bool {
	if sym.Semantics == graph.SemanticsSubroutine {
		return true
	}
	return strings.HasPrefix(LocalName(sym.Name), ">")
}
