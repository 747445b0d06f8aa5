package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/service"
)

// SweepResult totals one pass over the ticket table.
type SweepResult struct {
	Batches   int
	Processed int
	Updated   int
}

// Sweep runs the waiting backfill page by page starting at offset until a
// short page is returned. A non-positive maxTickets means no upper bound.
func Sweep(ctx context.Context, waiting *service.WaitingService, offset, batchSize, maxTickets int) (SweepResult, error) {
	var result SweepResult
	for {
		limit := batchSize
		if maxTickets > 0 && result.Processed+limit > maxTickets {
			limit = maxTickets - result.Processed
		}
		if limit <= 0 {
			return result, nil
		}

		batch, err := waiting.Run(ctx, offset, limit)
		if err != nil {
			return result, err
		}
		result.Batches++
		result.Processed += batch.Count
		result.Updated += batch.Updated
		if batch.Count < limit {
			return result, nil
		}
		offset += batch.Count

		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
}

// StartWaitingWorker sweeps every ticket on a fixed interval. A non-positive
// interval disables the worker.
func StartWaitingWorker(ctx context.Context, waiting *service.WaitingService, interval time.Duration, batchSize int, logger *zap.Logger) {
	if waiting == nil || interval <= 0 || batchSize <= 0 {
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
				start := time.Now()
				result, err := Sweep(ctx, waiting, 0, batchSize, 0)
				if err != nil {
					logger.Error("waiting sweep failed", zap.Error(err), zap.Int("processed", result.Processed))
					continue
				}
				logger.Info("waiting sweep finished",
					zap.Int("batches", result.Batches),
					zap.Int("processed", result.Processed),
					zap.Int("updated", result.Updated),
					zap.Duration("took", time.Since(start)))
			}
		}
	}()
}
