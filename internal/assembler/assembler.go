// Package assembler declares the callback surface that the Uxn assembler
// front-end drives during a single-file assembly pass. The assembler itself
// is an out-of-scope external collaborator (spec.md §1); this package only
// pins down the interface boundary so internal/analysis can adapt it into
// graph mutations without depending on a concrete assembler implementation.
package assembler

import (
	"context"
	"io"
)

// Severity mirrors the assembler's diagnostic kinds.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// SymbolKind mirrors spec.md §4.2's symbol-node kind enum.
type SymbolKind int

const (
	SymbolMacroDef SymbolKind = iota
	SymbolLabelDef
	SymbolMacroRef
	SymbolLabelRef
)

// IsDefinition reports whether this event introduces a new definition
// rather than referencing one.
func (k SymbolKind) IsDefinition() bool {
	return k == SymbolMacroDef || k == SymbolLabelDef
}

// Region is a 1-based source location as the assembler reports it, prior to
// LSP position conversion.
type Region struct {
	File   string
	Line   int
	Column int
	Length int
}

// Report is one diagnostic emitted during assembly.
type Report struct {
	Severity       Severity
	Region         Region
	Message        string
	RelatedRegion  *Region
	RelatedMessage string
}

// SymbolEvent is emitted once per definition or reference the assembler
// encounters, per spec.md §4.4's put_symbol callback.
type SymbolEvent struct {
	// Kind selects definition vs. reference and macro vs. label.
	Kind SymbolKind

	// ID is the assembler's own identity for this symbol: a 1-based index
	// into the per-run macro-definition array for macros, or the 16-bit
	// label id for labels (distinct from the label's address, which is in
	// Addr). References carry the ID being looked up.
	ID uint16

	// Addr is the resolved 16-bit address; zero for macros and for
	// references that have not yet been resolved.
	Addr uint16

	Name          string
	Region        Region
	Offset        int
	AutoGenerated bool
}

// Annotation is a doc-comment-like annotation attached to the most recently
// defined symbol, per spec.md §4.4's annotation-handler table.
type Annotation struct {
	// Keyword is "doc", "buxn:device", "buxn:memory", "buxn:enum", or ""
	// for a bare stack-effect comment with no keyword.
	Keyword string
	Text    string
}

// Sink receives the push-style callbacks an Assembler drives while
// processing one entry file. Implementations translate these into graph
// mutations; see internal/analysis/adapter.go.
type Sink interface {
	// Fopen resolves filename's content for the assembler to stream. The
	// returned ReadCloser is consumed fully then closed by the caller.
	Fopen(filename string) (io.ReadCloser, error)

	// PutROM stores one assembled byte at the given absolute address.
	PutROM(addr uint16, b byte)

	// PutSymbol reports a definition or reference.
	PutSymbol(ev SymbolEvent)

	// Annotate reports a doc-comment-like annotation attached to the
	// most recently defined symbol.
	Annotate(a Annotation)

	// Report delivers a diagnostic.
	Report(r Report)
}

// Assembler runs a single assembly pass over entry, driving sink's
// callbacks for every file opened, symbol emitted, byte written, and
// diagnostic reported. ok reports whether assembly completed without a
// fatal parse error; romWritten reports whether at least one ROM byte was
// produced (gating the optional stack-effect checker pass, per design note
// §9).
type Assembler interface {
	Assemble(ctx context.Context, entry string, sink Sink) (ok bool, romWritten bool, err error)
}
