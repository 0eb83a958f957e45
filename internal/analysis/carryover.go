package analysis

import "github.com/bullno1/buxn-ls/internal/graph"

// CarryOverErrors copies into currentSource's definition list every symbol
// definition from the previous generation's version of this file whose byte
// offset is strictly greater than lastSymbolByte — the furthest symbol the
// assembler committed before the parse error that set has_error. This keeps
// stale-but-useful symbols visible past the point a live edit broke
// parsing (spec.md §4.3 step 4).
//
// Go strings are immutable, so copying a Symbol struct already duplicates
// its name/documentation/signature independently of the previous
// generation's arena; there is no separate string-duplication step to
// perform, unlike the original's arena-allocated C strings.
func CarryOverErrors(current, previous *graph.Context, path string, currentSource graph.NodeID, lastSymbolByte int) {
	prevID, ok := previous.SourceByPath(path)
	if !ok {
		return
	}
	prevSrc := previous.Source(prevID)
	if prevSrc == nil {
		return
	}

	currentSrc := current.Source(currentSource)
	if currentSrc == nil {
		return
	}

	for _, defID := range prevSrc.Definitions {
		def := previous.Symbol(defID)
		if def == nil || def.Offset <= lastSymbolByte {
			continue
		}

		copied := *def
		copied.Source = currentSource
		copied.Base = graph.Base{}

		newID := current.NewSymbol(copied)
		currentSrc.Definitions = append(currentSrc.Definitions, newID)
	}
}
