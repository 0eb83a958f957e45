package graph

// Source identifies a file that participated in an analysis run.
type Source struct {
	Base

	Path string
	URI  string

	// Definitions and References hold the IDs of symbol nodes owned by this
	// source, in the order they were produced during assembly — the Go
	// analogue of the original's singly-linked definitions/references
	// lists.
	Definitions []NodeID
	References  []NodeID

	// Analyzed marks that the assembler has already visited this file
	// during the current run, so the driver skips a queued file that an
	// earlier entry already pulled in via fopen rather than re-running it.
	Analyzed bool
}
