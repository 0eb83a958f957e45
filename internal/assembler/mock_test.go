package assembler_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bullno1/buxn-ls/internal/assembler"
)

// recordingSink captures every callback invocation so tests can assert on
// the exact sequence a Mock replays.
type recordingSink struct {
	fopened []string
	rom     []assembler.ROMWrite
	symbols []assembler.SymbolEvent
	reports []assembler.Report
	files   map[string]string
}

func (s *recordingSink) Fopen(filename string) (io.ReadCloser, error) {
	s.fopened = append(s.fopened, filename)
	content, ok := s.files[filename]
	if !ok {
		return nil, assert.AnError
	}
	return io.NopCloser(stringsReader(content)), nil
}

func (s *recordingSink) PutROM(addr uint16, b byte) {
	s.rom = append(s.rom, assembler.ROMWrite{Addr: addr, Byte: b})
}

func (s *recordingSink) PutSymbol(ev assembler.SymbolEvent) {
	s.symbols = append(s.symbols, ev)
}

func (s *recordingSink) Annotate(assembler.Annotation) {}

func (s *recordingSink) Report(r assembler.Report) {
	s.reports = append(s.reports, r)
}

func stringsReader(s string) io.Reader {
	return &onceReader{s: s}
}

type onceReader struct{ s string }

func (r *onceReader) Read(p []byte) (int, error) {
	if len(r.s) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.s)
	r.s = r.s[n:]
	return n, nil
}

func TestMockReplaysScriptInOrder(t *testing.T) {
	t.Parallel()

	name := "@root ADD"
	sym := assembler.SymbolEvent{Kind: assembler.SymbolLabelDef, Name: "root", Offset: 0}
	report := assembler.Report{Severity: assembler.SeverityError, Message: "boom"}

	m := &assembler.Mock{
		OK:         false,
		ROMWritten: true,
		Script: []assembler.ScriptedEvent{
			{Fopen: &name},
			{ROM: &assembler.ROMWrite{Addr: 0x0100, Byte: 0x01}},
			{Symbol: &sym},
			{Report: &report},
		},
	}

	sink := &recordingSink{files: map[string]string{name: "( content )"}}
	ok, romWritten, err := m.Assemble(context.Background(), "entry.tal", sink)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, romWritten)
	assert.Equal(t, []string{name}, sink.fopened)
	require.Len(t, sink.rom, 1)
	assert.Equal(t, uint16(0x0100), sink.rom[0].Addr)
	require.Len(t, sink.symbols, 1)
	assert.Equal(t, "root", sink.symbols[0].Name)
	require.Len(t, sink.reports, 1)
	assert.Equal(t, "boom", sink.reports[0].Message)
}

func TestMockOpenServesRegisteredFiles(t *testing.T) {
	t.Parallel()

	m := &assembler.Mock{Files: map[string]string{"lib.tal": "@target BRK"}}

	rc, ok := m.Open("lib.tal")
	require.True(t, ok)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "@target BRK", string(content))

	_, ok = m.Open("missing.tal")
	assert.False(t, ok)
}
