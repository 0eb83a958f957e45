package completion

import (
	"strings"

	"github.com/bullno1/buxn-ls/internal/analysis"
	"github.com/bullno1/buxn-ls/internal/graph"
)

// ResetScope is the current scope when no preceding label definition
// exists, matching the Uxn convention of an implicit entry label.
const ResetScope = "RESET"

// CurrentScope walks every label definition in the active source and finds
// the one with the greatest offset strictly less than the cursor, per
// spec.md §4.5's "Scope resolution".
func CurrentScope(ctx *graph.Context, activeSource graph.NodeID, cursorOffset int) string {
	src := ctx.Source(activeSource)
	if src == nil {
		return ResetScope
	}

	best := -1
	bestName := ""
	for _, id := range src.Definitions {
		sym := ctx.Symbol(id)
		if sym == nil || sym.Kind != graph.KindLabel {
			continue
		}
		if sym.Offset < cursorOffset && sym.Offset > best {
			best = sym.Offset
			bestName = sym.Name
		}
	}

	if best < 0 {
		return ResetScope
	}
	return analysis.ScopeOf(bestName)
}

// LocalName returns the portion of a label name after its last "/", or the
// whole name if it has none.
func LocalName(name string) string {
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
