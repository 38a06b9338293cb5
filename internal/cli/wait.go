package cli

import (
	"time"

	"github.com/wdirstat/wdirstat/internal/scan"
	"github.com/wdirstat/wdirstat/internal/wdirstat"
)

// waitForScan blocks until facade's scan reaches a terminal state and
// reports whether it was cancelled. The CLI has no event-driven
// trampoline target, so it polls the same way the facade's own tests do.
func waitForScan(facade *wdirstat.Facade) (cancelled bool) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		switch facade.ScanState() {
		case scan.StateDone:
			return false
		case scan.StateCancelled:
			return true
		}
	}

	return false
}
