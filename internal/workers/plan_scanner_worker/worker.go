// Package plan_scanner_worker triggers the scanner on a fixed interval.
package plan_scanner_worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/services/scanner"
)

// Config holds worker configuration
type Config struct {
	// Interval between scans
	Interval time.Duration
	// RunTimeout bounds one scan invocation
	RunTimeout time.Duration
}

// Worker drives the scanner service on a schedule. Each run is
// independent; a failed run is logged and the next tick retries the
// whole scan, which is safe because the conditional status update makes
// dispatch idempotent across overlapping runs.
type Worker struct {
	scannerService *scanner.Service
	config         Config
	cron           *cron.Cron
	logger         *zap.Logger
}

// NewWorker creates a new scanner worker
func NewWorker(scannerService *scanner.Service, config Config, logger *zap.Logger) *Worker {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 4 * time.Minute
	}
	return &Worker{
		scannerService: scannerService,
		config:         config,
		cron:           cron.New(),
		logger:         logger,
	}
}

// Start schedules the scan and begins the cron loop
func (w *Worker) Start() error {
	spec := fmt.Sprintf("@every %s", w.config.Interval)
	_, err := w.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.config.RunTimeout)
		defer cancel()

		if err := w.scannerService.ScanDuePlans(ctx); err != nil {
			w.logger.Error("Scan run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule plan scan: %w", err)
	}

	w.cron.Start()
	w.logger.Info("Plan scanner worker started",
		zap.Duration("interval", w.config.Interval))

	return nil
}

// Stop stops the cron loop and waits for a running scan to finish
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("Plan scanner worker stopped")
}
