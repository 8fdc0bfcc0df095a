// Package scheduler runs the periodic work of the server process: batch
// enrichment on an interval and the daily insights report at a fixed local time.
package scheduler

import (
	"context"
	"time"

	"chatlens/internal/models"

	"github.com/rs/zerolog"
)

// BatchRunner runs one batch of enrichments
type BatchRunner interface {
	Run(ctx context.Context) (models.BatchResult, error)
}

// ReportGenerator builds the insights report for a date
type ReportGenerator interface {
	Generate(ctx context.Context, date string) (*models.DailyInsights, error)
}

// ReportSender delivers a finished report
type ReportSender interface {
	Enabled() bool
	SendDailyReport(report *models.DailyInsights) error
}

// Config controls when jobs run
type Config struct {
	BatchInterval time.Duration // <= 0 disables batch runs
	ReportHour    int
	ReportMinute  int
	Location      *time.Location
}

// Scheduler owns the ticker loop
type Scheduler struct {
	cfg     Config
	batch   BatchRunner
	reports ReportGenerator
	sender  ReportSender
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a scheduler. sender may be nil.
func New(cfg Config, batch BatchRunner, reports ReportGenerator, sender ReportSender, logger zerolog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		cfg:     cfg,
		batch:   batch,
		reports: reports,
		sender:  sender,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
	}
}

// NextReportTime returns the first report time strictly after now
func (s *Scheduler) NextReportTime(now time.Time) time.Time {
	local := now.In(s.cfg.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.ReportHour, s.cfg.ReportMinute, 0, 0, s.cfg.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	var batchC <-chan time.Time
	if s.cfg.BatchInterval > 0 && s.batch != nil {
		ticker := time.NewTicker(s.cfg.BatchInterval)
		defer ticker.Stop()
		batchC = ticker.C
	}

	next := s.NextReportTime(s.now())
	report := time.NewTimer(time.Until(next))
	defer report.Stop()

	s.logger.Info().
		Dur("batch_interval", s.cfg.BatchInterval).
		Time("next_report", next).
		Msg("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopped")
			return
		case <-batchC:
			s.runBatch(ctx)
		case <-report.C:
			date := s.now().In(s.cfg.Location).Format("2006-01-02")
			if err := s.RunReport(ctx, date); err != nil {
				s.logger.Error().Err(err).Str("date", date).Msg("Daily report failed")
			}
			next = s.NextReportTime(s.now())
			report.Reset(time.Until(next))
		}
	}
}

func (s *Scheduler) runBatch(ctx context.Context) {
	start := time.Now()
	result, err := s.batch.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled batch analysis failed")
		return
	}
	s.logger.Info().
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("Scheduled batch analysis completed")
}

// RunReport generates the report for date, logs it, and mails it when a sender is configured
func (s *Scheduler) RunReport(ctx context.Context, date string) error {
	report, err := s.reports.Generate(ctx, date)
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("work_day", report.WorkDay).
		Int("conversations", report.Summary.TotalConversations).
		Float64("resolution_rate", report.Summary.ResolutionRate).
		Float64("avg_satisfaction", report.CustomerInsights.AvgSatisfaction).
		Strs("recommendations", report.Recommendations).
		Msg("Daily insights report")

	if s.sender == nil || !s.sender.Enabled() {
		return nil
	}
	return s.sender.SendDailyReport(report)
}
