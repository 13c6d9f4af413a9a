package engine

import (
	"time"

	"go.uber.org/zap"
)

// SweepExpired cancels every resting order across every registered
// symbol whose timestamp is older than timeout, counted back from the
// clock's current value. Callers (cmd/server) run it on a ticker.
// Triggered/terminal orders are never touched, only orders still
// resting in a SideBook or StopBook are eligible. Returns the number
// of orders cancelled.
func (e *Engine) SweepExpired(timeout time.Duration) int {
	cutoff := e.clock.Current() - timeout.Microseconds()
	if cutoff <= 0 {
		return 0
	}

	e.symbolsMu.RLock()
	entries := make([]*bookEntry, 0, len(e.symbols))
	for _, entry := range e.symbols {
		entries = append(entries, entry)
	}
	e.symbolsMu.RUnlock()

	cancelled := 0
	for _, entry := range entries {
		entry.mu.Lock()
		var expired []string
		for id, o := range entry.book.byID {
			if o.Timestamp < cutoff && !o.Status.Terminal() && o.Status != Triggered {
				expired = append(expired, id)
			}
		}
		for _, id := range expired {
			if entry.book.Cancel(id) == nil {
				cancelled++
			}
		}
		entry.mu.Unlock()
	}

	if cancelled > 0 {
		e.logger.Info("expired orders cancelled", zap.Int("count", cancelled))
	}
	return cancelled
}
