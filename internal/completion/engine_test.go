package completion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bullno1/buxn-ls/internal/completion"
	"github.com/bullno1/buxn-ls/internal/graph"
	"github.com/bullno1/buxn-ls/internal/position"
)

func TestResolveSigilDispatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		prefix string
		match  completion.MatchType
		group  bool
		anchor int
	}{
		{";foo", completion.MatchAnyLabel, true, 1},
		{"=foo", completion.MatchAnyLabel, true, 1},
		{"!foo", completion.MatchSubroutineOnly, false, 1},
		{".foo", completion.MatchZeroPage, true, 1},
		{",foo", completion.MatchLocal, false, 1},
		{"/foo", completion.MatchSubLabel, false, 1},
		{"&foo", completion.MatchNone, false, 1},
		{"|foo", completion.MatchPreceding, true, 1},
		{"foo", completion.MatchAnySymbol, true, 0},
		{"", completion.MatchAnySymbol, true, 0},
		{",&foo", completion.MatchSubLabel, false, 2},
		{";/foo", completion.MatchSubLabel, false, 2},
	}

	for _, tc := range cases {
		rule, anchor := completion.Resolve(tc.prefix)
		assert.Equal(t, tc.match, rule.Match, "prefix %q", tc.prefix)
		assert.Equal(t, tc.group, rule.Group, "prefix %q", tc.prefix)
		assert.Equal(t, tc.anchor, anchor, "prefix %q", tc.prefix)
	}
}

// TestCompleteSigilScope is spec.md §8 scenario 3: "Source contains
// `@parent &child ADD @other SUB`. Cursor immediately after `,&` on a new
// line inside `@parent`'s scope returns a single item whose `label` is
// `child` and whose `textEdit` replaces the region after the `&`."
func TestCompleteSigilScope(t *testing.T) {
	t.Parallel()

	content := "@parent &child ADD \n,&\n@other SUB"
	lines := position.NewTable(content)

	ctx := graph.NewContext()
	srcID := ctx.NewSource("a.tal", "file:///a.tal")
	src := ctx.Source(srcID)

	parent := ctx.NewSymbol(graph.Symbol{Source: srcID, Name: "parent", Kind: graph.KindLabel, Offset: 0, Address: 0x0010})
	child := ctx.NewSymbol(graph.Symbol{Source: srcID, Name: "parent/child", Kind: graph.KindLabel, Offset: 8, Address: 0x0011})
	other := ctx.NewSymbol(graph.Symbol{Source: srcID, Name: "other", Kind: graph.KindLabel, Offset: 23, Address: 0x0020})
	src.Definitions = append(src.Definitions, parent, child, other)

	cursorOffset := 22 // right after ",&", before the trailing newline
	req := completion.Request{
		ActiveSource: srcID,
		CursorOffset: cursorOffset,
		PrefixStart:  20,
		Prefix:       ",&",
	}

	items := completion.Complete(ctx, lines, req)
	require.Len(t, items, 1)

	item := items[0]
	lspItem := completion.Serialize(item)
	assert.Equal(t, "child", lspItem.Label)
	require.NotNil(t, lspItem.TextEdit)
	assert.Equal(t, uint32(1), lspItem.TextEdit.Range.Start.Line)
	assert.Equal(t, uint32(2), lspItem.TextEdit.Range.Start.Character, "anchor lands right after the & on line 1")
	assert.Equal(t, uint32(1), lspItem.TextEdit.Range.End.Line)
	assert.Equal(t, uint32(2), lspItem.TextEdit.Range.End.Character)
}

func TestCompleteDeclarationSigilReturnsNoItems(t *testing.T) {
	t.Parallel()

	ctx := graph.NewContext()
	srcID := ctx.NewSource("a.tal", "file:///a.tal")
	lines := position.NewTable("@foo &bar")

	items := completion.Complete(ctx, lines, completion.Request{
		ActiveSource: srcID,
		CursorOffset: 9,
		PrefixStart:  8,
		Prefix:       "&",
	})
	assert.Nil(t, items)
}

func TestCompleteMacroNotForwardDeclared(t *testing.T) {
	t.Parallel()

	ctx := graph.NewContext()
	srcID := ctx.NewSource("a.tal", "file:///a.tal")
	src := ctx.Source(srcID)

	// A macro defined after the cursor must not be offered.
	late := ctx.NewSymbol(graph.Symbol{Source: srcID, Name: "helper", Kind: graph.KindMacro, Offset: 50, Semantics: graph.SemanticsSubroutine})
	src.Definitions = append(src.Definitions, late)

	lines := position.NewTable("helper")
	items := completion.Complete(ctx, lines, completion.Request{
		ActiveSource: srcID,
		CursorOffset: 6,
		PrefixStart:  0,
		Prefix:       "helper",
	})
	assert.Empty(t, items)
}

func TestCompleteForwardVisitCrossesIncludes(t *testing.T) {
	t.Parallel()

	ctx := graph.NewContext()
	mainID := ctx.NewSource("main.tal", "file:///main.tal")
	libID := ctx.NewSource("lib.tal", "file:///lib.tal")
	ctx.AddEdge(
		graph.NodeRef{Kind: graph.NodeKindSource, ID: mainID},
		graph.NodeRef{Kind: graph.NodeKindSource, ID: libID},
	)

	libSrc := ctx.Source(libID)
	target := ctx.NewSymbol(graph.Symbol{Source: libID, Name: "target", Kind: graph.KindLabel, Offset: 0, Address: 0x0200})
	libSrc.Definitions = append(libSrc.Definitions, target)

	lines := position.NewTable(";target")
	items := completion.Complete(ctx, lines, completion.Request{
		ActiveSource: mainID,
		CursorOffset: 7,
		PrefixStart:  0,
		Prefix:       ";target",
	})

	require.Len(t, items, 1)
	assert.True(t, items[0].Remote)
	assert.Equal(t, "target", items[0].Symbol.Name)
}
