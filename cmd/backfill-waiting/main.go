// backfill-waiting fills in how long customers have been waiting for a
// reply, walking the ticket table in id order. It runs the same batch job
// as POST /tickets/waiting-batch without going through the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/persistence"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var offset, limit, batchSize int

	flagSet := pflag.NewFlagSet("backfill-waiting", pflag.ContinueOnError)
	flagSet.IntVar(&offset, "offset", 0, "number of tickets (in id order) to skip")
	flagSet.IntVar(&limit, "limit", 0, "maximum number of tickets to process (0 processes all)")
	flagSet.IntVar(&batchSize, "batch-size", 0, "tickets per batch (default WORKER_WAITING_BATCH_SIZE)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if offset < 0 || limit < 0 || batchSize < 0 {
		return errors.New("--offset, --limit and --batch-size must not be negative")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if batchSize == 0 {
		batchSize = cfg.Worker.WaitingBatchSize
	}
	if cfg.Worker.WaitingBatchMaxLimit > 0 && batchSize > cfg.Worker.WaitingBatchMaxLimit {
		batchSize = cfg.Worker.WaitingBatchMaxLimit
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		return errors.New("POSTGRES_DSN is required")
	}

	waiting := service.NewWaitingService(service.WaitingDependencies{
		TicketRepo:  repository.NewTicketRepository(pg.PoolHandle()),
		MessageRepo: repository.NewMessageRepository(pg.PoolHandle()),
		MaxLimit:    cfg.Worker.WaitingBatchMaxLimit,
		Logger:      logger,
	})

	result, err := worker.Sweep(ctx, waiting, offset, batchSize, limit)
	logger.Info("backfill finished",
		zap.Int("batches", result.Batches),
		zap.Int("processed", result.Processed),
		zap.Int("updated", result.Updated),
		zap.Error(err))
	if err != nil {
		return err
	}
	fmt.Printf("processed %d tickets, updated %d\n", result.Processed, result.Updated)
	return nil
}
