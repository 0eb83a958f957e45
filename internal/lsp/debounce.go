package lsp

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// armDebounce (re)arms the 200ms analysis timer. Per spec.md §4.6 the timer
// is reset, not stacked: three didChange notifications within 100ms of each
// other produce exactly one run, 200ms after the last one.
func (s *Server) armDebounce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		return
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(debounceDelay, s.runAnalysis)
}

// cancelDebounce stops a pending timer without running analysis. Used by
// shutdown and by textDocument/completion, whose buffer is mid-edit and
// must not be analyzed or diagnosed by the pending run.
func (s *Server) cancelDebounce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
}

// runAnalysis is the debounce timer's callback; it runs on its own
// goroutine, so it holds mu for the duration of the driver run — the
// generational arenas are never read while being mutated.
func (s *Server) runAnalysis() {
	s.mu.Lock()
	driver := s.driver
	s.debounceTimer = nil
	shuttingDown := s.shuttingDown

	if driver == nil || shuttingDown {
		s.mu.Unlock()
		return
	}

	diags, err := driver.Run(context.Background())
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("analysis run failed", zap.Error(err))
		return
	}

	s.publishDiagnostics(context.Background(), diags)
}
