package acquisition

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Sweep deletes every session past its idle deadline.
func (o *Orchestrator) Sweep(ctx context.Context) (int, error) {
	n, err := o.store.DeleteExpiredSessions(ctx, o.now())
	if err != nil {
		return 0, eris.Wrap(err, "acquisition: sweep sessions")
	}
	o.metrics.AddSwept(n)
	if n > 0 {
		zap.L().Info("acquisition: swept expired sessions", zap.Int("count", n))
	}
	return n, nil
}

// RunSweeper sweeps every interval until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.Sweep(ctx); err != nil && ctx.Err() == nil {
				zap.L().Warn("acquisition: sweep failed", zap.Error(err))
			}
		}
	}
}
