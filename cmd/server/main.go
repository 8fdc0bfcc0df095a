package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "chatlens/docs"
	"chatlens/internal/analysis"
	"chatlens/internal/app"
	"chatlens/internal/config"
	"chatlens/internal/email"
	"chatlens/internal/handlers"
	"chatlens/internal/ingest"
	"chatlens/internal/insights"
	"chatlens/internal/k8s"
	"chatlens/internal/keylock"
	"chatlens/internal/queue"
	"chatlens/internal/scheduler"
	"chatlens/internal/server"
	"chatlens/internal/session"
	"chatlens/internal/webhook"
)

const shutdownTimeout = 30 * time.Second

// @title chatlens API
// @version 1.0.0
// @description Crisp conversation ingestion, enrichment and similarity search.
// @BasePath /
func main() {
	cfg := config.Load()
	logger := cfg.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer a.Close()

	broker := queue.NewClient(queue.Config{
		URL:             cfg.RabbitMQURL,
		Queue:           cfg.QueueName,
		DeadLetterQueue: cfg.DeadLetterQueue,
		ReconnectDelay:  cfg.ReconnectDelay(),
	}, logger)

	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		broker.Run(ctx)
	}()

	trigger := analysis.NewTrigger(a.Pipeline, cfg.AnalysisMinMessages, cfg.AnalysisSampleRate,
		time.Duration(cfg.OpenAITimeout)*2*time.Second, logger)
	processor := ingest.NewProcessor(
		a.Store,
		session.NewAggregator(cfg.Location(), cfg.WorkDayStartHour, cfg.DedupContentHash),
		keylock.New(),
		trigger,
		a.Tracker,
		logger,
	)

	if cfg.EnableConsumer {
		consumer := queue.NewConsumer(broker, cfg.ConsumerWorkers, processor.Handle, logger)
		background.Add(1)
		go func() {
			defer background.Done()
			consumer.Run(ctx)
		}()
	} else {
		logger.Info().Msg("Queue consumer disabled")
	}

	insightsService := insights.NewService(a.Store, time.Duration(cfg.InsightsCacheMinutes)*time.Minute,
		cfg.Location(), cfg.WorkDayStartHour, logger)
	mailer := email.NewReportService(cfg.SendGridAPIKey, cfg.ReportSender, cfg.ReportEmail)

	if cfg.EnableScheduler {
		sched := scheduler.New(scheduler.Config{
			BatchInterval: time.Duration(cfg.BatchAnalysisIntervalMin) * time.Minute,
			ReportHour:    cfg.InsightsReportHour,
			ReportMinute:  cfg.InsightsReportMinute,
			Location:      cfg.Location(),
		}, a.Batch, insightsService, mailer, logger)
		background.Add(1)
		go func() {
			defer background.Done()
			sched.Run(ctx)
		}()
	}

	var jobs handlers.JobLauncher
	if k8sClient, err := k8s.NewClient(cfg.JobNamespace, cfg.JobImage); err != nil {
		logger.Warn().Err(err).Msg("Kubernetes unavailable, job endpoints disabled")
	} else {
		jobs = k8sClient
	}

	srv := server.New(cfg, a.WriteClient.GetDB(), server.Dependencies{
		Publisher: broker,
		Broker:    broker,
		Verifier:  webhook.NewVerifier(cfg.CrispWebhookSecret, time.Duration(cfg.WebhookMaxSkewSeconds)*time.Second),
		Sessions:  a.Store,
		Analyzer:  a.Pipeline,
		Batch:     a.Batch,
		Vectors:   a.Vectors,
		Insights:  insightsService,
		Analytics: a.Tracker,
		Jobs:      jobs,
	}, logger)
	srv.Initialize()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	background.Wait()
	if err := trigger.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Enrichments still running at shutdown")
	}
	logger.Info().Msg("Shutdown complete")
}
