package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kirillkom/claims-intake/internal/bootstrap"
	"github.com/kirillkom/claims-intake/internal/config"
	"github.com/kirillkom/claims-intake/internal/core/domain"
	"github.com/kirillkom/claims-intake/internal/observability/logging"
	"github.com/kirillkom/claims-intake/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Publisher == nil && app.Purger == nil {
		logger.Error("worker_idle", "reason", "neither NATS_URL nor a postgres draft store is configured")
		return
	}

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	var wg sync.WaitGroup
	if app.Publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("worker_subscribed", "subject", cfg.NATSNoticeSubject)
			err := app.Publisher.SubscribeNotices(ctx, noticeHandler(workerMetrics, time.Now))
			if err != nil {
				logger.Error("worker_subscribe_failed", "error", err)
				stop()
			}
		}()
	}
	if app.Purger != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPurgeLoop(ctx, app.Purger, cfg.DraftPurgeInterval(), workerMetrics)
		}()
	}

	wg.Wait()
	logger.Info("worker_stopped")
}

func noticeHandler(m *metrics.WorkerMetrics, now func() time.Time) func(context.Context, domain.Notice) error {
	return func(_ context.Context, notice domain.Notice) error {
		lag := time.Duration(-1)
		if !notice.CreatedAt.IsZero() {
			lag = now().Sub(notice.CreatedAt)
		}
		m.ObserveNotice(service, string(notice.Kind), string(notice.Level), lag)
		slog.Info("notice_received",
			"draft_id", notice.DraftID,
			"kind", string(notice.Kind),
			"level", string(notice.Level),
			"field", notice.Field,
			"message", notice.Message,
		)
		return nil
	}
}

// runPurgeLoop removes expired drafts once at start and then every interval until ctx ends.
func runPurgeLoop(ctx context.Context, purger bootstrap.DraftPurger, interval time.Duration, m *metrics.WorkerMetrics) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		purged, err := purger.PurgeExpired(ctx)
		m.ObservePurge(service, purged, err)
		if err != nil {
			slog.Warn("draft_purge_failed", "error", err)
		} else if purged > 0 {
			slog.Info("drafts_purged", "count", purged)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
