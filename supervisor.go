package vicp

import (
	"context"
	"time"
)

// runSupervisor repeatedly calls RecoverOnce on interval until ctx is
// cancelled, then closes done. This is the cooperative replacement for
// the original driver's monitor task (LeCroy_Recover_Link run in a
// loop from a spawned epicsThread), stoppable by cancelling ctx instead
// of epicsThreadSuspend/taskDelete.
func runSupervisor(ctx context.Context, done chan struct{}, s *Session, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RecoverOnce(); err != nil {
				s.log.WithError(err).Debug("supervisor recovery attempt did not succeed")
			}
		}
	}
}
