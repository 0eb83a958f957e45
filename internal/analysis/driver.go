package analysis

import (
	"context"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"go.uber.org/zap"

	"github.com/bullno1/buxn-ls/internal/assembler"
	"github.com/bullno1/buxn-ls/internal/graph"
	"github.com/bullno1/buxn-ls/internal/workspace"
)

// Driver turns an updated workspace into a fresh symbol graph and
// diagnostic stream, per spec.md §4.3's six-step per-run protocol.
type Driver struct {
	logger     *zap.Logger
	workspace  *workspace.Workspace
	generations *graph.Generations
	assembler  assembler.Assembler
	disk       afs.Service
	rootDir    string
}

// New constructs a Driver. disk is typically afs.New(); when it is nil,
// afs.New() is used, so the on-disk fopen fallback reads the local
// filesystem.
func New(logger *zap.Logger, ws *workspace.Workspace, generations *graph.Generations, asm assembler.Assembler, disk afs.Service, rootDir string) *Driver {
	if disk == nil {
		disk = afs.New()
	}
	return &Driver{
		logger:      logger,
		workspace:   ws,
		generations: generations,
		assembler:   asm,
		disk:        disk,
		rootDir:     rootDir,
	}
}

// Run executes one full analysis pass and returns the sorted diagnostic
// stream. The receiver's Generations is mutated in place: Current() holds
// the fresh graph once Run returns.
func (d *Driver) Run(ctx context.Context) ([]Diagnostic, error) {
	runID := uuid.New()
	logger := d.logger.With(zap.String("run_id", runID.String()))

	// Step 1: swap generations.
	d.generations.Swap()
	current := d.generations.Current()
	previous := d.generations.Previous()

	run := NewRunState(current)

	// Step 2: seed the work queue.
	queue := d.seedQueue(current, previous)
	logger.Debug("analysis run starting", zap.Int("queued_files", len(queue)))

	// Step 3: run the assembler once per queued file, in order, skipping
	// any file already marked analyzed by an earlier entry's fopen chain.
	for _, path := range queue {
		if srcID, ok := current.SourceByPath(path); ok {
			if src := current.Source(srcID); src != nil && src.Analyzed {
				continue
			}
		}

		adapter := NewAdapter(ctx, logger, d.workspace, d.rootDir, d.disk, run)
		_, _, err := d.assembler.Assemble(ctx, path, adapter)
		if err != nil {
			logger.Warn("assemble failed", zap.String("path", path), zap.Error(err))
			continue
		}

		// Step 4: error-tolerance carry-over.
		record, ok := run.FileCache.Get(path)
		if !ok || !record.HasError {
			continue
		}
		srcID, ok := current.SourceByPath(path)
		if !ok {
			continue
		}
		CarryOverErrors(current, previous, path, srcID, record.LastSymbolByte)
	}

	// Step 5: wire references.
	wireReferences(current, run)

	// Step 6: sort diagnostics by URI.
	SortDiagnostics(run.Diagnostics)

	return run.Diagnostics, nil
}

// seedQueue builds the ordered, deduplicated list of files to assemble this
// run, per spec.md §4.3 step 2.
func (d *Driver) seedQueue(current, previous *graph.Context) []string {
	open := make(map[string]bool)
	for _, path := range d.workspace.OpenPaths() {
		open[path] = true
	}

	var queue []string
	queued := make(map[string]bool)

	enqueue := func(path string) {
		if !queued[path] {
			queued[path] = true
			queue = append(queue, path)
		}
	}

	for path := range open {
		if _, ok := current.SourceByPath(path); ok {
			continue
		}

		prevID, ok := previous.SourceByPath(path)
		if !ok {
			enqueue(path)
			continue
		}

		root := walkToRoot(previous, prevID)
		for _, descID := range collectDescendants(previous, root) {
			desc := previous.Source(descID)
			if desc == nil || !open[desc.Path] {
				continue
			}
			enqueue(desc.Path)
		}
	}

	return queue
}

// walkToRoot repeatedly follows a source node's first incoming edge until
// one with no incoming edge is found (spec.md §4.3 step 2).
func walkToRoot(ctx *graph.Context, id graph.NodeID) graph.NodeID {
	for {
		src := ctx.Source(id)
		if src == nil {
			return id
		}
		in := src.InEdges()
		if len(in) == 0 {
			return id
		}
		edge := ctx.Edge(in[0])
		if edge.From.Kind != graph.NodeKindSource {
			return id
		}
		id = edge.From.ID
	}
}

// collectDescendants walks every source-level out-edge reachable from root,
// including root itself, guarding against cycles (legal per spec.md §9:
// "A includes B, B includes A is legal").
func collectDescendants(ctx *graph.Context, root graph.NodeID) []graph.NodeID {
	visited := map[graph.NodeID]bool{root: true}
	order := []graph.NodeID{root}

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

	return order
}

// wireReferences resolves every pending reference against the per-run
// macro/label definition tables, dropping unresolved ones (spec.md §4.3
// step 5; design note §9's "look up or ignore" open question).
func wireReferences(current *graph.Context, run *RunState) {
	for _, ref := range run.PendingRefs {
		var target graph.NodeID
		var ok bool

		switch ref.Kind {
		case graph.KindMacroRef:
			idx := int(ref.ID) - 1
			if idx >= 0 && idx < len(run.MacroDefs) && run.MacroDefs[idx] >= 0 {
				target, ok = run.MacroDefs[idx], true
			}
		case graph.KindLabelRef:
			target, ok = run.LabelDefs[ref.ID]
		}

		if !ok {
			continue
		}

		refSym := graph.Symbol{
			Source: ref.Source,
			Name:   ref.Name,
			Kind:   ref.Kind,
			Offset: ref.Offset,
			Range:  ref.Range,
		}
		refID := current.NewSymbol(refSym)

		if src := current.Source(ref.Source); src != nil {
			src.References = append(src.References, refID)
		}

		current.AddEdge(
			graph.NodeRef{Kind: graph.NodeKindSymbol, ID: refID},
			graph.NodeRef{Kind: graph.NodeKindSymbol, ID: target},
		)
	}
}
