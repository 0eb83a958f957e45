package position_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bullno1/buxn-ls/internal/position"
)

func TestTableFromByteOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		offset int
		want   position.Position
	}{
		{
			name:   "start of file",
			input:  "@foo ADD\n;foo JMP2\n",
			offset: 0,
			want:   position.Position{Line: 0, Character: 0},
		},
		{
			name:   "second line",
			input:  "@foo ADD\n;foo JMP2\n",
			offset: 9,
			want:   position.Position{Line: 1, Character: 0},
		},
		{
			name:   "mid second line",
			input:  "@foo ADD\n;foo JMP2\n",
			offset: 10,
			want:   position.Position{Line: 1, Character: 1},
		},
		{
			name:   "clamps past end of file",
			input:  "@foo ADD\n",
			offset: 1000,
			want:   position.Position{Line: 0, Character: 8},
		},
		{
			name:   "CRLF line endings",
			input:  "@foo ADD\r\n;foo JMP2\r\n",
			offset: 10,
			want:   position.Position{Line: 1, Character: 0},
		},
		{
			name:   "wide codepoint widens by two code units",
			input:  "( 😀 comment )\n@foo ADD\n",
			offset: len("( 😀 "),
			want:   position.Position{Line: 0, Character: 5},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			table := position.NewTable(tc.input)
			got := table.FromByteOffset(tc.offset)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRoundTripOnCodepointBoundaries(t *testing.T) {
	t.Parallel()

	input := "@parent &child ( 日本語 ) ADD\n;parent/child JMP2\n"
	table := position.NewTable(input)

	for offset := 0; offset <= len(input); offset++ {
		if !validBoundary(input, offset) {
			continue
		}
		pos := table.FromByteOffset(offset)
		back := table.ToByteOffset(pos)
		require.Equal(t, offset, back, "offset %d did not round-trip (got %d)", offset, back)
	}
}

func validBoundary(s string, offset int) bool {
	if offset == 0 || offset == len(s) {
		return true
	}
	// A boundary is valid if it doesn't split a multi-byte UTF-8 sequence.
	return s[offset]&0xC0 != 0x80
}

func TestCompare(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -1, position.Compare(position.Position{Line: 0, Character: 0}, position.Position{Line: 1, Character: 0}))
	assert.Equal(t, 1, position.Compare(position.Position{Line: 2, Character: 0}, position.Position{Line: 1, Character: 5}))
	assert.Equal(t, 0, position.Compare(position.Position{Line: 3, Character: 4}, position.Position{Line: 3, Character: 4}))
	assert.Equal(t, -1, position.Compare(position.Position{Line: 3, Character: 1}, position.Position{Line: 3, Character: 4}))
}
