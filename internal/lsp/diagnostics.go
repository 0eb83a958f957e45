package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/bullno1/buxn-ls/internal/analysis"
	"github.com/bullno1/buxn-ls/internal/position"
)

// publishDiagnostics sends one publishDiagnostics notification per URI that
// has diagnostics this run, then clears (empty-array notification) every
// URI that had diagnostics last run but none now — spec.md §8's "empty-
// diagnostics notification sent exactly once per URI" invariant.
func (s *Server) publishDiagnostics(ctx context.Context, diags []analysis.Diagnostic) {
	uris, grouped := analysis.GroupByURI(diags)

	s.mu.Lock()
	previous := s.lastPublished
	s.mu.Unlock()

	current := make(map[string]bool, len(uris))
	for _, u := range uris {
		current[u] = true
		s.publishOne(ctx, u, grouped[u])
	}
	for u := range previous {
		if !current[u] {
			s.publishOne(ctx, u, nil)
		}
	}

	s.mu.Lock()
	s.lastPublished = current
	s.mu.Unlock()
}

func (s *Server) publishOne(ctx context.Context, uri string, diags []analysis.Diagnostic) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return
	}

	items := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		items = append(items, convertDiagnostic(d))
	}

	err := client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri),
		Diagnostics: items,
	})
	if err != nil {
		s.logger.Error("publishDiagnostics failed", zap.String("uri", uri), zap.Error(err))
	}
}

func convertDiagnostic(d analysis.Diagnostic) protocol.Diagnostic {
	diag := protocol.Diagnostic{
		Range:    toProtocolRange(d.Location.Range),
		Severity: convertSeverity(d.Severity),
		Source:   d.Source,
		Message:  d.Message,
	}

	if d.RelatedLocation != nil {
		diag.RelatedInformation = []protocol.DiagnosticRelatedInformation{{
			Location: protocol.Location{
				URI:   protocol.DocumentURI(d.RelatedLocation.URI),
				Range: toProtocolRange(d.RelatedLocation.Range),
			},
			Message: d.RelatedMessage,
		}}
	}

	return diag
}

func convertSeverity(sev analysis.Severity) protocol.DiagnosticSeverity {
	switch sev {
	case analysis.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case analysis.SeverityInformation:
		return protocol.DiagnosticSeverityInformation
	default:
		return protocol.DiagnosticSeverityError
	}
}

func toProtocolRange(r position.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(r.Start.Line), Character: uint32(r.Start.Character)},
		End:   protocol.Position{Line: uint32(r.End.Line), Character: uint32(r.End.Character)},
	}
}

func toInternalPosition(p protocol.Position) position.Position {
	return position.Position{Line: int(p.Line), Character: int(p.Character)}
}
