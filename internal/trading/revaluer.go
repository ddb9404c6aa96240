package trading

import (
	"context"
	"time"
)

// StartRevaluer revalues all active portfolios every interval until ctx is
// done. A non-positive interval disables it.
func StartRevaluer(ctx context.Context, svc *Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := svc.RevalueAll(ctx); err != nil && ctx.Err() == nil {
					svc.log.Error().Err(err).Msg("periodic revaluation")
				}
			}
		}
	}()
}
