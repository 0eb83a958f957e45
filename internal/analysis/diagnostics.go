package analysis

import (
	"sort"

	"github.com/bullno1/buxn-ls/internal/assembler"
	"github.com/bullno1/buxn-ls/internal/position"
)

// Severity mirrors spec.md §3's diagnostic severity enum.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInformation
)

func severityFromAssembler(s assembler.Severity) Severity {
	switch s {
	case assembler.SeverityWarning:
		return SeverityWarning
	case assembler.SeverityInfo:
		return SeverityInformation
	default:
		return SeverityError
	}
}

// Location is a URI + range, the wire shape a Diagnostic or navigation
// result points at.
type Location struct {
	URI   string
	Range position.Range
}

// Diagnostic is one assembler report translated into LSP terms, per
// spec.md §3's "Diagnostic" data model entry.
type Diagnostic struct {
	Location       Location
	Severity       Severity
	Source         string
	Message        string
	RelatedLocation *Location
	RelatedMessage  string
}

// diagSource is the fixed "source" tag every diagnostic this server
// publishes carries, identifying the assembler as the origin.
const diagSource = "buxn-asm"

// ConvertReport translates one assembler.Report into a Diagnostic, resolving
// its region (and optional related region) through lineTableFor — a lookup
// that reuses each file's per-run line-split cache (SPEC_FULL.md §C) rather
// than re-splitting it per diagnostic.
func ConvertReport(report assembler.Report, uriForPath func(path string) string, lineTableFor func(path string) *position.Table) Diagnostic {
	d := Diagnostic{
		Severity: severityFromAssembler(report.Severity),
		Source:   diagSource,
		Message:  report.Message,
	}

	d.Location = Location{
		URI:   uriForPath(report.Region.File),
		Range: RangeFromRegion(lineTableFor(report.Region.File), report.Region),
	}

	if report.RelatedRegion != nil {
		loc := Location{
			URI:   uriForPath(report.RelatedRegion.File),
			Range: RangeFromRegion(lineTableFor(report.RelatedRegion.File), *report.RelatedRegion),
		}
		d.RelatedLocation = &loc
		d.RelatedMessage = report.RelatedMessage
	}

	return d
}

// RangeFromRegion converts a 1-based assembler region into an LSP Range
// using table, the target file's line-split cache. Shared by diagnostic and
// symbol-definition range computation so both go through the exact same
// position-conversion algorithm.
func RangeFromRegion(table *position.Table, r assembler.Region) position.Range {
	start := table.FromLineColumn(r.Line, r.Column)
	end := table.FromLineColumn(r.Line, r.Column+r.Length)
	return position.Range{Start: start, End: end}
}

// SortDiagnostics sorts diagnostics by URI (spec.md §4.3 step 6), so
// publication can batch them per file. The sort is stable so diagnostics
// against the same URI keep their collection order.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].Location.URI < diags[j].Location.URI
	})
}

// GroupByURI partitions an already-sorted diagnostic slice into per-URI
// groups, preserving URI order. Used by internal/lsp to publish one
// notification per file and to detect which previously-published URIs are
// now empty.
func GroupByURI(diags []Diagnostic) (uris []string, grouped map[string][]Diagnostic) {
	grouped = make(map[string][]Diagnostic)
	for _, d := range diags {
		if _, seen := grouped[d.Location.URI]; !seen {
			uris = append(uris, d.Location.URI)
		}
		grouped[d.Location.URI] = append(grouped[d.Location.URI], d)
	}
	return uris, grouped
}
