package analysis_test

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bullno1/buxn-ls/internal/analysis"
	"github.com/bullno1/buxn-ls/internal/assembler"
	"github.com/bullno1/buxn-ls/internal/graph"
	"github.com/bullno1/buxn-ls/internal/position"
	"github.com/bullno1/buxn-ls/internal/workspace"
)

// dispatchAssembler routes Assemble calls to a per-entry-file scripted Mock,
// standing in for a real multi-file assembler front-end while keeping each
// file's canned event stream independently authored.
type dispatchAssembler struct {
	scripts map[string]*assembler.Mock
}

func (d *dispatchAssembler) Assemble(ctx context.Context, entry string, sink assembler.Sink) (bool, bool, error) {
	m, ok := d.scripts[entry]
	if !ok {
		return true, false, nil
	}
	return m.Assemble(ctx, entry, sink)
}

func region(file string, line, col, length int) assembler.Region {
	return assembler.Region{File: file, Line: line, Column: col, Length: length}
}

func TestDriverDefinitionJump(t *testing.T) {
	t.Parallel()

	ws := workspace.New(zap.NewNop(), "/root")
	ws.DidOpen("a.tal", "@foo ADD ;foo JMP2")

	fooDef := assembler.SymbolEvent{Kind: assembler.SymbolLabelDef, ID: 1, Addr: 0x0100, Name: "foo", Offset: 1, Region: region("a.tal", 1, 2, 3)}
	fooRef := assembler.SymbolEvent{Kind: assembler.SymbolLabelRef, ID: 1, Name: "foo", Offset: 10, Region: region("a.tal", 1, 11, 3)}
	entry := "a.tal"

	asm := &dispatchAssembler{scripts: map[string]*assembler.Mock{
		"a.tal": {OK: true, Script: []assembler.ScriptedEvent{
			{Fopen: &entry},
			{Symbol: &fooDef},
			{Symbol: &fooRef},
		}},
	}}

	gens := graph.NewGenerations()
	driver := analysis.New(zap.NewNop(), ws, gens, asm, nil, "/root/")

	diags, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, diags)

	current := gens.Current()
	srcID, ok := current.SourceByPath("a.tal")
	require.True(t, ok)
	src := current.Source(srcID)

	require.Len(t, src.Definitions, 1)
	def := current.Symbol(src.Definitions[0])
	assert.Equal(t, "foo", def.Name)

	require.Len(t, src.References, 1)
	ref := current.Symbol(src.References[0])
	require.Len(t, ref.OutEdges(), 1, "every reference node has exactly one outgoing edge")
	edge := current.Edge(ref.OutEdges()[0])
	assert.Equal(t, src.Definitions[0], edge.To.ID)
}

func TestDriverCrossFileReference(t *testing.T) {
	t.Parallel()

	ws := workspace.New(zap.NewNop(), "/root")
	ws.DidOpen("main.tal", ";target JMP2")
	ws.DidOpen("lib.tal", "@target BRK")

	mainEntry := "main.tal"
	libEntry := "lib.tal"

	targetRef := assembler.SymbolEvent{Kind: assembler.SymbolLabelRef, ID: 1, Name: "target", Offset: 0, Region: region("main.tal", 1, 1, 7)}
	targetDef := assembler.SymbolEvent{Kind: assembler.SymbolLabelDef, ID: 1, Addr: 0x0200, Name: "target", Offset: 0, Region: region("lib.tal", 1, 2, 6)}

	asm := &dispatchAssembler{scripts: map[string]*assembler.Mock{
		"main.tal": {OK: true, Script: []assembler.ScriptedEvent{{Fopen: &mainEntry}, {Symbol: &targetRef}}},
		"lib.tal":  {OK: true, Script: []assembler.ScriptedEvent{{Fopen: &libEntry}, {Symbol: &targetDef}}},
	}}

	gens := graph.NewGenerations()
	driver := analysis.New(zap.NewNop(), ws, gens, asm, nil, "/root/")

	_, err := driver.Run(context.Background())
	require.NoError(t, err)

	current := gens.Current()
	mainID, _ := current.SourceByPath("main.tal")
	libID, _ := current.SourceByPath("lib.tal")
	mainSrc := current.Source(mainID)
	libSrc := current.Source(libID)

	require.Len(t, mainSrc.References, 1)
	require.Len(t, libSrc.Definitions, 1)

	ref := current.Symbol(mainSrc.References[0])
	require.Len(t, ref.OutEdges(), 1)
	resolvedEdge := current.Edge(ref.OutEdges()[0])
	assert.Equal(t, libSrc.Definitions[0], resolvedEdge.To.ID)
}

func TestDriverErrorToleranceCarryOver(t *testing.T) {
	t.Parallel()

	ws := workspace.New(zap.NewNop(), "/root")
	ws.DidOpen("a.tal", "@foo ADD @bar ADD")
	entry := "a.tal"

	fooDef := assembler.SymbolEvent{Kind: assembler.SymbolLabelDef, ID: 1, Addr: 0x0010, Name: "foo", Offset: 0, Region: region("a.tal", 1, 1, 3)}
	barDef := assembler.SymbolEvent{Kind: assembler.SymbolLabelDef, ID: 2, Addr: 0x0020, Name: "bar", Offset: 20, Region: region("a.tal", 1, 21, 3)}

	firstRun := &dispatchAssembler{scripts: map[string]*assembler.Mock{
		"a.tal": {OK: true, Script: []assembler.ScriptedEvent{{Fopen: &entry}, {Symbol: &fooDef}, {Symbol: &barDef}}},
	}}

	gens := graph.NewGenerations()
	driver1 := analysis.New(zap.NewNop(), ws, gens, firstRun, nil, "/root/")
	_, err := driver1.Run(context.Background())
	require.NoError(t, err)

	// Edit the file: re-commits foo, then hits a parse error before bar.
	ws.DidChange("a.tal", "@foo BAD @bar ADD")
	parseError := assembler.Report{Severity: assembler.SeverityError, Region: region("a.tal", 1, 9, 1), Message: "bad token"}

	secondRun := &dispatchAssembler{scripts: map[string]*assembler.Mock{
		"a.tal": {OK: false, Script: []assembler.ScriptedEvent{
			{Fopen: &entry},
			{Symbol: &fooDef},
			{Report: &parseError},
		}},
	}}

	driver2 := analysis.New(zap.NewNop(), ws, gens, secondRun, nil, "/root/")
	diags, err := driver2.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, diags, 1)

	current := gens.Current()
	srcID, ok := current.SourceByPath("a.tal")
	require.True(t, ok)
	src := current.Source(srcID)

	var names []string
	for _, id := range src.Definitions {
		names = append(names, current.Symbol(id).Name)
	}
	assert.Contains(t, names, "foo", "foo was re-committed this run")
	assert.Contains(t, names, "bar", "bar is carried over from the previous successful run past the error point")
}

func TestDriverDevicePortSemantics(t *testing.T) {
	t.Parallel()

	ws := workspace.New(zap.NewNop(), "/root")
	ws.DidOpen("a.tal", "( buxn:device )\n@Console &write $1")
	entry := "a.tal"

	consoleDef := assembler.SymbolEvent{Kind: assembler.SymbolLabelDef, ID: 1, Addr: 0x0008, Name: "Console", Offset: 17, Region: region("a.tal", 2, 1, 8)}
	writeDef := assembler.SymbolEvent{Kind: assembler.SymbolLabelDef, ID: 2, Addr: 0x0009, Name: "Console/write", Offset: 26, Region: region("a.tal", 2, 10, 6)}

	asm := &dispatchAssembler{scripts: map[string]*assembler.Mock{
		"a.tal": {OK: true, Script: []assembler.ScriptedEvent{
			{Fopen: &entry},
			{Annotation: &assembler.Annotation{Keyword: "buxn:device"}},
			{Symbol: &consoleDef},
			{Symbol: &writeDef},
		}},
	}}

	gens := graph.NewGenerations()
	driver := analysis.New(zap.NewNop(), ws, gens, asm, nil, "/root/")
	_, err := driver.Run(context.Background())
	require.NoError(t, err)

	current := gens.Current()
	srcID, _ := current.SourceByPath("a.tal")
	src := current.Source(srcID)
	require.Len(t, src.Definitions, 2)

	for _, id := range src.Definitions {
		sym := current.Symbol(id)
		assert.Equal(t, graph.SemanticsDevicePort, sym.Semantics, sym.Name)
	}
}

// symbolTuple and sourceTuple project a *graph.Context into plain,
// cmp-comparable values: Base's unexported edge-index slices can't be
// diffed directly, but "which definition a reference resolves to" can be
// flattened to a name.
type symbolTuple struct {
	Name       string
	Kind       graph.Kind
	Semantics  graph.Semantics
	Range      position.Range
	ResolvesTo string
}

type sourceTuple struct {
	Path        string
	URI         string
	Definitions []symbolTuple
	References  []symbolTuple
}

// graphTuples projects ctx into a tuple set ordered by name, not insertion
// order: workspace.OpenPaths (and therefore assembly queue order) is
// explicitly unspecified, so only a set comparison is a valid idempotence
// check across two runs.
func graphTuples(ctx *graph.Context) []sourceTuple {
	resolve := func(sym *graph.Symbol) string {
		for _, edgeID := range sym.OutEdges() {
			edge := ctx.Edge(edgeID)
			if edge.To.Kind != graph.NodeKindSymbol {
				continue
			}
			if target := ctx.Symbol(edge.To.ID); target != nil {
				return target.Name
			}
		}
		return ""
	}

	symTuple := func(id graph.NodeID) symbolTuple {
		sym := ctx.Symbol(id)
		return symbolTuple{
			Name:       sym.Name,
			Kind:       sym.Kind,
			Semantics:  sym.Semantics,
			Range:      sym.Range,
			ResolvesTo: resolve(sym),
		}
	}

	var tuples []sourceTuple
	for _, src := range ctx.Sources() {
		st := sourceTuple{Path: src.Path, URI: src.URI}
		for _, id := range src.Definitions {
			st.Definitions = append(st.Definitions, symTuple(id))
		}
		for _, id := range src.References {
			st.References = append(st.References, symTuple(id))
		}
		sort.Slice(st.Definitions, func(i, j int) bool { return st.Definitions[i].Name < st.Definitions[j].Name })
		sort.Slice(st.References, func(i, j int) bool { return st.References[i].Name < st.References[j].Name })
		tuples = append(tuples, st)
	}
	sort.Slice(tuples, func(i, j int) bool { return tuples[i].Path < tuples[j].Path })
	return tuples
}

// TestDriverConsecutiveRunsProduceIdenticalTuples covers spec.md §8's "two
// consecutive analyses produce identical graph tuples" invariant: an
// unchanged workspace re-assembled on the next run must rebuild the exact
// same source/symbol/edge shape in the fresh generation, byte for byte.
func TestDriverConsecutiveRunsProduceIdenticalTuples(t *testing.T) {
	t.Parallel()

	ws := workspace.New(zap.NewNop(), "/root")
	ws.DidOpen("main.tal", ";draw JSR2")
	ws.DidOpen("lib.tal", "@draw ADD")
	mainEntry, libEntry := "main.tal", "lib.tal"

	drawRef := assembler.SymbolEvent{Kind: assembler.SymbolLabelRef, ID: 1, Name: "draw", Offset: 0, Region: region("main.tal", 1, 1, 5)}
	drawDef := assembler.SymbolEvent{Kind: assembler.SymbolLabelDef, ID: 1, Addr: 0x0100, Name: "draw", Offset: 1, Region: region("lib.tal", 1, 2, 4)}

	asm := &dispatchAssembler{scripts: map[string]*assembler.Mock{
		"main.tal": {OK: true, Script: []assembler.ScriptedEvent{{Fopen: &mainEntry}, {Symbol: &drawRef}}},
		"lib.tal":  {OK: true, Script: []assembler.ScriptedEvent{{Fopen: &libEntry}, {Symbol: &drawDef}}},
	}}

	gens := graph.NewGenerations()
	driver := analysis.New(zap.NewNop(), ws, gens, asm, nil, "/root/")

	_, err := driver.Run(context.Background())
	require.NoError(t, err)
	first := graphTuples(gens.Current())
	require.NotEmpty(t, first)

	_, err = driver.Run(context.Background())
	require.NoError(t, err)
	second := graphTuples(gens.Current())

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("consecutive runs over an unchanged workspace diverged (-first +second):\n%s", diff)
	}
}
