package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	campaignsservice "leadflow_backend/internal/campaigns/service"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	campaigns *campaignsservice.Service
	quiet     time.Duration
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, campaigns *campaignsservice.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		campaigns: campaigns,
		quiet:     cfg.GetNoResponseQuietPeriod(),
		log:       log,
	}

	mux.HandleFunc(TaskSequenceTick, w.handleSequenceTick)
	mux.HandleFunc(TaskDispatchSend, w.handleDispatchSend)
	mux.HandleFunc(TaskNoResponseSweep, w.handleNoResponseSweep)

	return w, nil
}

func (w *Worker) handleSequenceTick(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSequenceTickPayload(task)
	if err != nil {
		return err
	}

	composed, dispatched, err := w.campaigns.ProcessDueLeads(ctx, time.Now(), payload.BatchLimit)
	if err != nil {
		return err
	}
	if composed > 0 || dispatched > 0 {
		w.log.Info("sequence tick processed", "composed", composed, "dispatched", dispatched)
	}
	return nil
}

func (w *Worker) handleDispatchSend(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDispatchSendPayload(task)
	if err != nil {
		return err
	}

	sendID, err := uuid.Parse(payload.EmailSendID)
	if err != nil {
		return err
	}

	_, err = w.campaigns.DispatchSend(ctx, sendID)
	if err != nil {
		// A send cancelled or already dispatched since enqueue is not a
		// failure worth retrying.
		if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindNotFound) {
			w.log.Info("skipping dispatch task", "emailSendId", payload.EmailSendID, "reason", err.Error())
			return nil
		}
		return err
	}
	return nil
}

func (w *Worker) handleNoResponseSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNoResponseSweepPayload(task)
	if err != nil {
		return err
	}

	settled, err := w.campaigns.SweepNoResponse(ctx, w.quiet, payload.BatchLimit)
	if err != nil {
		return err
	}
	if settled > 0 {
		w.log.Info("no-response sweep settled leads", "count", settled)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// RunTicker enqueues the periodic tasks at the configured interval until the
// context ends. It runs alongside the worker in the scheduler process.
func RunTicker(ctx context.Context, client *Client, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.EnqueueSequenceTick(ctx, 100); err != nil {
				log.Error("failed to enqueue sequence tick", "error", err)
			}
			if err := client.EnqueueNoResponseSweep(ctx, 100); err != nil {
				log.Error("failed to enqueue no-response sweep", "error", err)
			}
		}
	}
}
