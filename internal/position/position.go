// Package position converts between byte offsets in UTF-8 source text and
// the line/UTF-16-column positions the Language Server Protocol uses on the
// wire.
package position

import "unicode/utf8"

// Position is a zero-based line and a UTF-16 code-unit column, matching LSP's
// wire representation.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open [Start, End) span expressed as Positions.
type Range struct {
	Start Position
	End   Position
}

// Table splits a file's content into lines once and reuses the split for
// every subsequent byte->Position conversion against that file, mirroring
// the original implementation's per-run line cache (a file's line table,
// once built in a run, is stable for the remainder of that run).
type Table struct {
	content string
	lines   []string
	built   bool
}

// NewTable creates a lazily-populated line table over content.
func NewTable(content string) *Table {
	return &Table{content: content}
}

func (t *Table) ensureLines() {
	if t.built {
		return
	}
	t.built = true

	start := 0
	for i := 0; i < len(t.content); i++ {
		switch t.content[i] {
		case '\n':
			t.lines = append(t.lines, t.content[start:i])
			start = i + 1
		case '\r':
			if i+1 < len(t.content) && t.content[i+1] == '\n' {
				t.lines = append(t.lines, t.content[start:i])
				start = i + 2
				i++
			} else {
				t.lines = append(t.lines, t.content[start:i])
				start = i + 1
			}
		}
	}
	if start < len(t.content) {
		t.lines = append(t.lines, t.content[start:])
	}
}

// LineCount returns the number of lines in the table.
func (t *Table) LineCount() int {
	t.ensureLines()
	return len(t.lines)
}

// Line returns the raw text of the given zero-based line, or "" if out of
// range.
func (t *Table) Line(line int) string {
	t.ensureLines()
	if line < 0 || line >= len(t.lines) {
		return ""
	}
	return t.lines[line]
}

// FromByteOffset converts a byte offset within content to a line/UTF-16
// Position. Offsets past the end of the content clamp to the last line.
func (t *Table) FromByteOffset(offset int) Position {
	t.ensureLines()
	if len(t.lines) == 0 {
		return Position{}
	}
	// The end of content that finishes with a line terminator is the start
	// of the empty line after the last one in the table.
	if last := len(t.content) - 1; offset == len(t.content) && (t.content[last] == '\n' || t.content[last] == '\r') {
		return Position{Line: len(t.lines), Character: 0}
	}

	lineStart := 0
	for lineIdx, line := range t.lines {
		lineEnd := lineStart + len(line)
		if offset <= lineEnd || lineIdx == len(t.lines)-1 {
			return Position{
				Line:      lineIdx,
				Character: byteOffsetToUTF16(line, offset-lineStart),
			}
		}
		// Account for the line terminator(s) consumed by ensureLines.
		lineStart = lineEnd + lineTerminatorLen(t.content, lineEnd)
	}

	return Position{Line: len(t.lines) - 1, Character: 0}
}

func lineTerminatorLen(content string, at int) int {
	if at >= len(content) {
		return 0
	}
	if content[at] == '\r' {
		if at+1 < len(content) && content[at+1] == '\n' {
			return 2
		}
		return 1
	}
	if content[at] == '\n' {
		return 1
	}
	return 0
}

// byteOffsetToUTF16 converts a byte offset within a single line to a UTF-16
// code-unit column, widening by two code units for codepoints above 0xFFFF.
// Invalid UTF-8 sequences are skipped one byte at a time, matching the
// original implementation's tolerance for malformed source.
func byteOffsetToUTF16(line string, byteOffset int) int {
	if byteOffset < 0 {
		return 0
	}
	if byteOffset > len(line) {
		byteOffset = len(line)
	}

	units := 0
	for i := 0; i < byteOffset; {
		r, size := utf8.DecodeRuneInString(line[i:])
		if r == utf8.RuneError && size <= 1 {
			i++
			units++
			continue
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		i += size
	}

	return units
}

// ToByteOffset converts a UTF-16 column on a given line back to a byte
// offset within that line. It is the inverse of byteOffsetToUTF16 and is
// round-trip exact for any offset landing on a codepoint boundary.
func (t *Table) ToByteOffset(pos Position) int {
	t.ensureLines()
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(t.lines) {
		if len(t.lines) == 0 {
			return 0
		}
		return len(t.content)
	}

	lineStart := 0
	for i := 0; i < pos.Line; i++ {
		lineStart += len(t.lines[i])
		lineStart += lineTerminatorLen(t.content, lineStart)
	}

	line := t.lines[pos.Line]
	units := 0
	for i := 0; i < len(line); {
		if units >= pos.Character {
			return lineStart + i
		}
		r, size := utf8.DecodeRuneInString(line[i:])
		if r == utf8.RuneError && size <= 1 {
			i++
			units++
			continue
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		i += size
	}

	return lineStart + len(line)
}

// FromLineColumn converts a 1-based source line and 1-based byte column, as
// the assembler reports them, to a 0-based LSP Position. Out-of-range lines
// clamp to the last line at column 0 rather than erroring, matching the
// original implementation's tolerance for malformed input.
func (t *Table) FromLineColumn(line, column int) Position {
	t.ensureLines()
	if len(t.lines) == 0 {
		return Position{}
	}

	lineIdx := line - 1
	if lineIdx < 0 {
		lineIdx = 0
	}
	if lineIdx >= len(t.lines) {
		return Position{Line: len(t.lines) - 1, Character: 0}
	}

	byteCol := column - 1
	if byteCol < 0 {
		byteCol = 0
	}

	return Position{
		Line:      lineIdx,
		Character: byteOffsetToUTF16(t.lines[lineIdx], byteCol),
	}
}

// Compare orders two Positions by line then character.
func Compare(a, b Position) int {
	if a.Line != b.Line {
		if a.Line < b.Line {
			return -1
		}
		return 1
	}
	if a.Character != b.Character {
		if a.Character < b.Character {
			return -1
		}
		return 1
	}
	return 0
}
