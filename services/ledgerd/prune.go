package main

import (
	"context"
	"log/slog"
	"time"

	"proplend/services/ledgerd/server"
)

func pruneIdempotency(ctx context.Context, store *server.IdempotencyStore, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Prune(ctx)
			if err != nil {
				logger.Warn("idempotency prune failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Debug("idempotency keys pruned", "removed", removed)
			}
		}
	}
}
