package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"leadflow_backend/internal/campaigns"
	campaignsservice "leadflow_backend/internal/campaigns/service"
	"leadflow_backend/internal/classifier"
	"leadflow_backend/internal/email"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads"
	"leadflow_backend/internal/scheduler"
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
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	sender := email.NewSMTPSender(cfg, log)

	composer, err := email.NewTemplateComposer(cfg)
	if err != nil {
		log.Error("failed to initialize email composer", "error", err)
		panic("failed to initialize email composer: " + err.Error())
	}

	replyClassifier := initClassifier(ctx, cfg, log)

	// Worker-side campaign wiring (no HTTP handlers required).
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

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, campaignsModule.Service, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		scheduler.RunTicker(gctx, client, cfg.GetSequenceTickInterval(), log)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", "error", err)
		panic("scheduler stopped: " + err.Error())
	}
	log.Info("scheduler shut down")
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
