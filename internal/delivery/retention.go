package delivery

import (
	"context"
	"time"

	"github.com/broadwing/dispatch/pkg/logger"
)

// RunRetentionSweeper blocks, running Sweep every interval until ctx is
// canceled, removing records older than days. The first sweep runs
// immediately rather than waiting a full interval.
func RunRetentionSweeper(ctx context.Context, store *Store, days int, interval time.Duration, log logger.Logger) {
	sweep := func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		n, err := store.Sweep(ctx, cutoff)
		if err != nil {
			if log != nil {
				log.WithField("error", err.Error()).Error("retention sweep failed")
			}
			return
		}
		if log != nil && n > 0 {
			log.WithField("removed", n).Info("retention sweep removed expired delivery records")
		}
	}

	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
