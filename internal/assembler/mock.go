package assembler

import (
	"context"
	"io"
	"strings"
)

// ROMWrite is one scripted PutROM call.
type ROMWrite struct {
	Addr uint16
	Byte byte
}

// ScriptedEvent is one step of a Mock's canned event stream. Exactly one
// field should be non-nil.
type ScriptedEvent struct {
	Fopen      *string
	ROM        *ROMWrite
	Symbol     *SymbolEvent
	Annotation *Annotation
	Report     *Report
}

// Mock is a scripted Assembler that replays a canned event stream against
// whatever Sink it's given, instead of actually parsing Uxn source. Tests
// for the analysis driver and completion engine are written against this,
// per design note §9 ("Tests... should be written against a mock emitter
// producing a canned symbol stream").
type Mock struct {
	Script     []ScriptedEvent
	OK         bool
	ROMWritten bool

	// Files optionally holds file contents served by Open. Assemble does not
	// consult it: scripted Fopen events go straight to the sink's Fopen.
	Files map[string]string
}

// Assemble replays m.Script against sink in order.
func (m *Mock) Assemble(ctx context.Context, entry string, sink Sink) (bool, bool, error) {
	for _, ev := range m.Script {
		switch {
		case ev.Fopen != nil:
			rc, err := sink.Fopen(*ev.Fopen)
			if err == nil {
				io.Copy(io.Discard, rc)
				rc.Close()
			}
		case ev.ROM != nil:
			sink.PutROM(ev.ROM.Addr, ev.ROM.Byte)
		case ev.Symbol != nil:
			sink.PutSymbol(*ev.Symbol)
		case ev.Annotation != nil:
			sink.Annotate(*ev.Annotation)
		case ev.Report != nil:
			sink.Report(*ev.Report)
		}
	}
	return m.OK, m.ROMWritten, nil
}

// readCloser adapts a string into an io.ReadCloser for File-backed mocks.
type readCloser struct {
	*strings.Reader
}

func (readCloser) Close() error { return nil }

// Open returns the content registered for path in m.Files, for use by a
// Sink under test that wants to see realistic Fopen round-trips.
func (m *Mock) Open(path string) (io.ReadCloser, bool) {
	content, ok := m.Files[path]
	if !ok {
		return nil, false
	}
	return readCloser{strings.NewReader(content)}, true
}
