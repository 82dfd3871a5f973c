package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/campaigns"
	campaignsservice "leadflow_backend/internal/campaigns/service"
	"leadflow_backend/internal/classifier"
	"leadflow_backend/internal/email"
	"leadflow_backend/internal/enrichment"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/leads"
	"leadflow_backend/internal/partners"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/internal/webhook"
	"leadflow_backend/migrations"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	sender := email.NewSMTPSender(cfg, log)

	composer, err := email.NewTemplateComposer(cfg)
	if err != nil {
		log.Error("failed to initialize email composer", "error", err)
		panic("failed to initialize email composer: " + err.Error())
	}

	replyClassifier := initClassifier(ctx, cfg, log)
	enricher := initEnricher(cfg, log)

	leadsModule := leads.NewModule(pool, eventBus, log, val)
	campaignsModule := campaigns.NewModule(campaigns.Deps{
		Pool:       pool,
		Bus:        eventBus,
		Logger:     log,
		Policy:     cfg,
		Sender:     sender,
		Composer:   composer,
		Classifier: replyClassifier,
		Leads:      leadsModule.Service,
	})

	// When Redis is configured, approvals hand the send straight to the
	// scheduler process instead of waiting for the next sequence tick.
	dispatchQueue, closeQueue := initDispatchQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}
	if dispatchQueue != nil {
		campaignsModule.Service.SetDispatchQueue(dispatchQueue)
	}

	enrichSvc := enrichment.NewService(enricher, campaignsModule.Service, leadsModule.Service, log)
	enrichmentModule := enrichment.NewModule(enrichSvc)

	webhookModule := webhook.NewModule(campaignsModule.Service, cfg, log)
	partnersModule := partners.NewModule(pool, eventBus, log)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			campaignsModule,
			enrichmentModule,
			webhookModule,
			partnersModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initClassifier(ctx context.Context, cfg *config.Config, log *logger.Logger) campaignsservice.ReplyClassifier {
	if !cfg.IsClassifierEnabled() {
		log.Warn("GEMINI_API_KEY not configured; falling back to keyword reply classification")
		return classifier.KeywordClassifier{}
	}

	gemini, err := classifier.NewGeminiClassifier(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize reply classifier, falling back to keywords", "error", err)
		return classifier.KeywordClassifier{}
	}
	return gemini
}

func initEnricher(cfg *config.Config, log *logger.Logger) enrichment.Enricher {
	if !cfg.IsEnrichmentEnabled() {
		log.Warn("ENRICHMENT_API_URL not configured; leads will enrich with static defaults")
		return enrichment.StaticEnricher{}
	}
	return enrichment.NewHTTPClient(cfg)
}

func initDispatchQueue(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; approved sends wait for the sequence tick")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize dispatch queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
