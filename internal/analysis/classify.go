package analysis

import (
	"strings"

	"github.com/bullno1/buxn-ls/internal/assembler"
	"github.com/bullno1/buxn-ls/internal/graph"
)

// ScopeOf returns the portion of a label name before its first "/", or the
// whole name if it has none (spec.md Glossary: "Scope").
func ScopeOf(name string) string {
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		return name[:idx]
	}
	return name
}

// FileClassification tracks the per-file state the annotation handler and
// label-commit classification rules (spec.md §4.4) read and mutate: the
// zero-page semantic default (set by `buxn:device`/`buxn:memory`) and the
// remembered enum scope (set by `buxn:enum`).
type FileClassification struct {
	ZeroPageDefault graph.Semantics
	EnumScope       string
}

// NewFileClassification returns classification state for a freshly opened
// file, defaulting zero-page labels to VARIABLE.
func NewFileClassification() *FileClassification {
	return &FileClassification{ZeroPageDefault: graph.SemanticsVariable}
}

// ClassifyLabel determines a label definition's semantics at commit time
// (put_symbol), per spec.md §4.4's classification rules, and clears the
// enum scope once it no longer applies.
func (fc *FileClassification) ClassifyLabel(addr uint16, name string) graph.Semantics {
	if addr > 0x00FF {
		return graph.SemanticsVariable
	}

	if fc.EnumScope != "" && ScopeOf(name) == fc.EnumScope {
		return graph.SemanticsEnum
	}

	fc.EnumScope = ""
	return fc.ZeroPageDefault
}

// ApplyAnnotation applies one annotation event to file-level state and/or
// the currently pending definition (the most recently committed symbol in
// this file), per spec.md §4.4's annotation table. pending is nil if no
// definition has been committed yet.
func (fc *FileClassification) ApplyAnnotation(a assembler.Annotation, pending *graph.Symbol) {
	switch a.Keyword {
	case "doc":
		if pending != nil {
			pending.Documentation = a.Text
		}
	case "buxn:device":
		fc.ZeroPageDefault = graph.SemanticsDevicePort
	case "buxn:memory":
		fc.ZeroPageDefault = graph.SemanticsVariable
	case "buxn:enum":
		if pending != nil {
			pending.Semantics = graph.SemanticsEnum
			fc.EnumScope = ScopeOf(pending.Name)
		}
	case "":
		// A bare stack-effect comment with no recognized keyword.
		if pending != nil {
			pending.Semantics = graph.SemanticsSubroutine
			pending.Signature = a.Text
		}
	}
}
