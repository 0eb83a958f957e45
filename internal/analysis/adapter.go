package analysis

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/viant/afs"
	"go.uber.org/zap"

	"github.com/bullno1/buxn-ls/internal/assembler"
	"github.com/bullno1/buxn-ls/internal/graph"
	"github.com/bullno1/buxn-ls/internal/position"
	"github.com/bullno1/buxn-ls/internal/workspace"
)

// PendingRef is one reference recorded during assembly, awaiting resolution
// in the driver's wiring step (spec.md §4.3 step 5).
type PendingRef struct {
	Source graph.NodeID
	Kind   graph.Kind
	ID     uint16
	Name   string
	Offset int
	Range  position.Range
}

// RunState is the state shared across every queued file processed within a
// single analysis run: the symbol-graph context being built, the file
// cache, the per-run macro/label definition tables used for reference
// resolution, the accumulated pending references, and the diagnostic
// stream.
type RunState struct {
	Graph     *graph.Context
	FileCache *FileCache

	// MacroDefs is indexed by (macro id - 1); macros cannot be
	// forward-declared, so a flat slice indexed by their 1-based id
	// suffices (spec.md §4.3 step 5).
	MacroDefs []graph.NodeID
	// LabelDefs is keyed by the assembler's symbol id (distinct from the
	// label's resolved address, which is stored on the Symbol node).
	LabelDefs map[uint16]graph.NodeID

	PendingRefs []PendingRef
	Diagnostics []Diagnostic
}

// NewRunState returns an empty RunState for a fresh analysis run.
func NewRunState(g *graph.Context) *RunState {
	return &RunState{
		Graph:     g,
		FileCache: NewFileCache(),
		LabelDefs: make(map[uint16]graph.NodeID),
	}
}

// Adapter implements assembler.Sink, translating one queued file's
// assembly events into symbol-graph mutations for the current generation.
// It is installed fresh per queued-file invocation (spec.md §4.3 step 3:
// "each invocation installs a fresh per-file callback context"), but shares
// a *RunState across every invocation within the same run.
type Adapter struct {
	ctx       context.Context
	logger    *zap.Logger
	workspace *workspace.Workspace
	rootDir   string
	disk      afs.Service
	run       *RunState

	// openStack tracks the chain of currently-open files so fopen can
	// attribute a source-level include edge to whichever file is open when
	// the nested fopen happens (spec.md §4.4 fopen: "if this fopen was
	// triggered by a different entry file, add a source-level edge").
	openStack []graph.NodeID

	// lastSymbol dedupes consecutive identical put_symbol emissions — the
	// assembler emits 16-bit address references twice (spec.md §4.4).
	lastSymbol *assembler.SymbolEvent

	// pendingDef is the most recently committed definition symbol in the
	// file currently being processed, the target of any annotation that
	// follows it.
	pendingDef *graph.Symbol

	// lastOpenedPath is the file most recently opened through Fopen; Annotate
	// falls back to it once every handle has been closed.
	lastOpenedPath string
}

// NewAdapter constructs an Adapter for one queued-file invocation. disk is
// typically afs.New() pointed at the local filesystem; tests can pass an
// afs.Service backed by an in-memory scheme instead of real disk I/O, per
// SPEC_FULL.md §B.
func NewAdapter(ctx context.Context, logger *zap.Logger, ws *workspace.Workspace, rootDir string, disk afs.Service, run *RunState) *Adapter {
	if disk == nil {
		disk = afs.New()
	}
	return &Adapter{
		ctx:       ctx,
		logger:    logger,
		workspace: ws,
		rootDir:   rootDir,
		disk:      disk,
		run:       run,
	}
}

// fopenResult wraps a ReadCloser so Close pops the includer stack, letting
// Adapter know when it has returned to the parent file, and clears the
// record's InUse flag.
type fopenResult struct {
	io.Reader
	adapter *Adapter
	record  *FileRecord
}

func (r *fopenResult) Close() error {
	if n := len(r.adapter.openStack); n > 0 {
		r.adapter.openStack = r.adapter.openStack[:n-1]
	}
	if r.record != nil {
		r.record.InUse = false
	}
	return nil
}

// Fopen resolves filename's content in priority order: already loaded this
// run, an open workspace document, then an on-disk read relative to the
// workspace root (spec.md §4.4 fopen cases (a)-(c)).
func (a *Adapter) Fopen(filename string) (io.ReadCloser, error) {
	record, ok := a.run.FileCache.Get(filename)
	if !ok {
		content, err := a.loadContent(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "fopen %q", filename)
		}
		record = a.run.FileCache.Load(filename, content)
	}
	record.InUse = true
	a.lastOpenedPath = filename

	sourceID, isNew := a.ensureSource(filename)
	if !isNew || len(a.openStack) > 0 {
		if includer := a.currentIncluder(); includer != graph.NodeID(-1) && includer != sourceID {
			a.run.Graph.AddEdge(
				graph.NodeRef{Kind: graph.NodeKindSource, ID: includer},
				graph.NodeRef{Kind: graph.NodeKindSource, ID: sourceID},
			)
		}
	}
	if src := a.run.Graph.Source(sourceID); src != nil {
		src.Analyzed = true
	}

	a.openStack = append(a.openStack, sourceID)
	return &fopenResult{Reader: strings.NewReader(record.Content), adapter: a, record: record}, nil
}

func (a *Adapter) currentIncluder() graph.NodeID {
	if len(a.openStack) == 0 {
		return graph.NodeID(-1)
	}
	return a.openStack[len(a.openStack)-1]
}

// ensureSource returns the source node for path, creating one if absent.
func (a *Adapter) ensureSource(filePath string) (graph.NodeID, bool) {
	if id, ok := a.run.Graph.SourceByPath(filePath); ok {
		return id, false
	}
	uri := ""
	if a.workspace != nil {
		uri = string(a.workspace.URIForPath(filePath))
	}
	return a.run.Graph.NewSource(filePath, uri), true
}

// loadContent resolves filename's bytes via the workspace (an open
// document's text, which is already an immutable snapshot since Go strings
// cannot be mutated in place) or, failing that, disk.
func (a *Adapter) loadContent(filename string) (string, error) {
	if a.workspace != nil {
		if doc, ok := a.workspace.Get(filename); ok {
			return doc.Text, nil
		}
	}

	full := path.Join(a.rootDir, filename)
	content, err := a.disk.DownloadWithURL(a.ctx, full)
	if err != nil {
		return "", errors.Wrap(err, "read from disk")
	}
	return string(content), nil
}

// PutROM accepts one assembled byte and discards it: the symbol graph does
// not need ROM contents, and no ROM buffer is kept.
func (a *Adapter) PutROM(addr uint16, b byte) {
	_ = addr
	_ = b
}

// PutSymbol translates one definition or reference event into a graph
// mutation, per spec.md §4.4's put_symbol rules.
func (a *Adapter) PutSymbol(ev assembler.SymbolEvent) {
	if a.lastSymbol != nil && sameSymbolEvent(*a.lastSymbol, ev) {
		return
	}
	last := ev
	a.lastSymbol = &last

	record, ok := a.run.FileCache.Get(ev.Region.File)
	if !ok {
		a.logger.Warn("put_symbol for unopened file", zap.String("file", ev.Region.File))
		return
	}

	sourceID, _ := a.ensureSource(ev.Region.File)
	src := a.run.Graph.Source(sourceID)

	if ev.Kind.IsDefinition() {
		record.LastSymbolByte = ev.Offset

		if ev.AutoGenerated {
			return
		}

		symRange := RangeFromRegion(record.Lines, ev.Region)
		sym := graph.Symbol{
			Source: sourceID,
			Name:   ev.Name,
			Kind:   definitionKind(ev.Kind),
			Offset: ev.Offset,
			Range:  symRange,
			Address: ev.Addr,
		}

		switch ev.Kind {
		case assembler.SymbolMacroDef:
			sym.Semantics = graph.SemanticsSubroutine
		case assembler.SymbolLabelDef:
			sym.Semantics = record.Classification.ClassifyLabel(ev.Addr, ev.Name)
		}

		nodeID := a.run.Graph.NewSymbol(sym)
		symPtr := a.run.Graph.Symbol(nodeID)
		src.Definitions = append(src.Definitions, nodeID)

		switch ev.Kind {
		case assembler.SymbolMacroDef:
			a.growMacroDefs(int(ev.ID))
			a.run.MacroDefs[ev.ID-1] = nodeID
		case assembler.SymbolLabelDef:
			a.run.LabelDefs[ev.ID] = nodeID
		}

		a.pendingDef = symPtr
		return
	}

	// Reference: queue for resolution in the driver's wiring step.
	a.run.PendingRefs = append(a.run.PendingRefs, PendingRef{
		Source: sourceID,
		Kind:   referenceKind(ev.Kind),
		ID:     ev.ID,
		Name:   ev.Name,
		Offset: ev.Offset,
		Range:  RangeFromRegion(record.Lines, ev.Region),
	})
}

func (a *Adapter) growMacroDefs(id int) {
	for len(a.run.MacroDefs) < id {
		a.run.MacroDefs = append(a.run.MacroDefs, graph.NodeID(-1))
	}
}

func sameSymbolEvent(a, b assembler.SymbolEvent) bool {
	return a.Kind == b.Kind && a.ID == b.ID && a.Offset == b.Offset && a.Region == b.Region && a.Name == b.Name
}

func definitionKind(k assembler.SymbolKind) graph.Kind {
	if k == assembler.SymbolMacroDef {
		return graph.KindMacro
	}
	return graph.KindLabel
}

func referenceKind(k assembler.SymbolKind) graph.Kind {
	if k == assembler.SymbolMacroRef {
		return graph.KindMacroRef
	}
	return graph.KindLabelRef
}

// Annotate applies one annotation to the file's classification state and/or
// the most recently committed definition in that file.
func (a *Adapter) Annotate(ann assembler.Annotation) {
	// Annotations are attributed to the innermost file currently open, or,
	// once every handle has been closed, to the file most recently opened;
	// FileClassification is per-record, so look the record up by that path.
	path := a.lastOpenedPath
	if n := len(a.openStack); n > 0 {
		if src := a.run.Graph.Source(a.openStack[n-1]); src != nil {
			path = src.Path
		}
	}
	record, ok := a.run.FileCache.Get(path)
	if !ok {
		return
	}
	record.Classification.ApplyAnnotation(ann, a.pendingDef)
}

// Report translates one assembler diagnostic, dropping top-level reports
// (region line 0) and flagging the owning file's record as errored when
// severity is Error (spec.md §4.4 report, §7).
func (a *Adapter) Report(r assembler.Report) {
	if r.Region.Line == 0 {
		return
	}

	if r.Severity == assembler.SeverityError {
		if record, ok := a.run.FileCache.Get(r.Region.File); ok {
			record.HasError = true
		}
	}

	uriForPath := func(path string) string {
		if a.workspace != nil {
			return string(a.workspace.URIForPath(path))
		}
		return path
	}

	a.run.Diagnostics = append(a.run.Diagnostics, ConvertReport(r, uriForPath, a.lineTableFor))
}

// lineTableFor returns the line-split cache for path, building an empty one
// if the file was never opened this run (a report against a file we never
// read, which should not happen in practice but must not panic).
func (a *Adapter) lineTableFor(path string) *position.Table {
	if record, ok := a.run.FileCache.Get(path); ok {
		return record.Lines
	}
	return position.NewTable("")
}
