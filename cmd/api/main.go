package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticketdesk/internal/api/http"
	"github.com/spec-kit/ticketdesk/internal/api/http/handlers"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/channel"
	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/persistence"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	hub := events.NewHub()
	broadcaster := buildBroadcaster(ctx, cfg, hub, redis, logger)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:        ticketRepo,
		TicketLogRepo:     repository.NewTicketLogRepository(pool),
		ContactRepo:       repository.NewContactRepository(pool),
		WhatsappRepo:      repository.NewWhatsappRepository(pool),
		Channel:           channel.NewGatewayClient(cfg.Channel),
		Broadcaster:       broadcaster,
		Logger:            logger,
		Metrics:           metrics,
		SideEffectTimeout: cfg.Worker.SideEffectTimeout(),
	})
	listingService := service.NewListingService(service.ListingDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Users:       userRepo,
		Config:      cfg.Listing,
	})
	waitingService := service.NewWaitingService(service.WaitingDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		MaxLimit:    cfg.Worker.WaitingBatchMaxLimit,
		Logger:      logger,
	})

	worker.StartNotificationWorker(ctx, service.NewNotificationService(hub, logger))
	worker.StartWaitingWorker(ctx, waitingService, cfg.Worker.WaitingInterval(), cfg.Worker.WaitingBatchSize, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	dependencies := map[string]handlers.Pinger{"postgres": pg}
	if redis.Enabled() {
		dependencies["redis"] = redis
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService, listingService, waitingService),
		Events:         handlers.NewEventsHandler(hub, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

// buildBroadcaster picks the local delivery path and adds the broker sink
// when one is configured. With Redis every instance's hub is fed through
// the fan-out, so the hub is not published to directly.
func buildBroadcaster(ctx context.Context, cfg *config.Config, hub *events.Hub, redis *persistence.Redis, logger *zap.Logger) events.Broadcaster {
	sinks := events.Multi{}
	if redis.Enabled() {
		fanout := events.NewRedisFanout(redis.Client, hub, logger)
		go func() {
			if err := fanout.Run(ctx); err != nil {
				logger.Error("redis fan-out stopped", zap.Error(err))
			}
		}()
		sinks = append(sinks, fanout)
	} else {
		sinks = append(sinks, hub)
	}

	if cfg.Broker.URL != "" {
		sink, err := events.NewAMQPSink(ctx, cfg.Broker, cfg.App.Name, logger)
		if err != nil {
			logger.Error("broker unavailable; lifecycle events stay local", zap.Error(err))
		} else {
			sinks = append(sinks, sink)
			go func() {
				<-ctx.Done()
				_ = sink.Close()
			}()
		}
	}
	return sinks
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
