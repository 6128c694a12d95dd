package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/claims-intake/internal/config"
	"github.com/kirillkom/claims-intake/internal/core/ports"
	"github.com/kirillkom/claims-intake/internal/core/usecase"
	"github.com/kirillkom/claims-intake/internal/infrastructure/claimsapi"
	"github.com/kirillkom/claims-intake/internal/infrastructure/draftstore"
	"github.com/kirillkom/claims-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/claims-intake/internal/infrastructure/repository/memory"
	"github.com/kirillkom/claims-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/claims-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/claims-intake/internal/observability/metrics"
)

const (
	DraftStoreMemory   = "memory"
	DraftStoreRedis    = "redis"
	DraftStorePostgres = "postgres"
)

// DraftPurger removes drafts past their TTL. Only the Postgres store needs it.
type DraftPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type App struct {
	Config config.Config

	Intake    *usecase.IntakeUseCase
	Metrics   *metrics.HTTPServerMetrics
	Publisher *nats.Publisher
	Purger    DraftPurger

	closers []func()
}

func New(ctx context.Context, cfg config.Config) (_ *App, err error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.NewHTTPServerMetrics("api"),
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	store, err := app.newDraftStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	var ledger ports.SubmissionLedger = memory.NewSubmissionLedger()
	if db != nil {
		ledger = postgres.NewSubmissionRepository(db)
	}

	var publisher ports.NoticePublisher
	if cfg.NATSURL != "" {
		pub, err := nats.New(cfg.NATSURL, cfg.NATSNoticeSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.Config{
				RetryMaxAttempts:    3,
				RetryInitialBackoff: 200 * time.Millisecond,
				RetryMaxBackoff:     time.Second,
				RetryMultiplier:     2,
				AttemptTimeout:      2 * time.Second,
				BreakerEnabled:      cfg.BreakerEnabled,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("init notice publisher: %w", err)
		}
		app.closers = append(app.closers, pub.Close)
		app.Publisher = pub
		publisher = pub
	}

	client := claimsapi.New(cfg.ClaimsAPIURL, cfg.ClaimsAPIToken)
	predictor := claimsapi.NewPredictor(client, claimsapi.PredictorOptions{
		Path:              cfg.PredictPath,
		DefaultConfidence: cfg.DefaultConfidence,
		Resilience: resilience.Config{
			RetryMaxAttempts:    cfg.PredictMaxAttempts,
			RetryInitialBackoff: cfg.PredictRetryDelay(),
			RetryMaxBackoff:     cfg.PredictRetryDelay(),
			RetryMultiplier:     1,
			AttemptTimeout:      cfg.PredictTimeout(),
			BreakerEnabled:      cfg.BreakerEnabled,
		},
	})
	submitter := claimsapi.NewSubmitter(client, claimsapi.SubmitterOptions{
		Path: cfg.SubmitPath,
		Resilience: resilience.Config{
			RetryMaxAttempts:    cfg.SubmitMaxAttempts,
			RetryInitialBackoff: 500 * time.Millisecond,
			RetryMaxBackoff:     500 * time.Millisecond,
			RetryMultiplier:     1,
			AttemptTimeout:      cfg.SubmitTimeout(),
			BreakerEnabled:      cfg.BreakerEnabled,
		},
	})

	workflow := metrics.NewWorkflowMetrics("api", app.Metrics.Registerer())
	app.Intake = usecase.NewIntakeUseCase(store, predictor, submitter, ledger, publisher, workflow, usecase.IntakeOptions{
		IncidentDateDefaultToday: cfg.IncidentDateDefaultToday,
	})
	// Sessions must settle before the stores they write to are closed.
	app.closers = append(app.closers, app.Intake.Close)

	slog.Info("bootstrap_ready",
		"draft_store", cfg.DraftStore,
		"ledger", ledgerName(db),
		"notices", cfg.NATSURL != "",
		"claims_api", cfg.ClaimsAPIURL,
	)
	return app, nil
}

func (a *App) newDraftStore(ctx context.Context, cfg config.Config, db *sql.DB) (ports.DraftStore, error) {
	switch cfg.DraftStore {
	case "", DraftStoreMemory:
		return draftstore.NewMemoryStore(cfg.DraftTTL(), time.Minute), nil
	case DraftStoreRedis:
		client := draftstore.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		a.closers = append(a.closers, func() { _ = client.Close() })
		store := draftstore.NewRedisStore(client, "", cfg.DraftTTL())
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("init redis draft store: %w", err)
		}
		return store, nil
	case DraftStorePostgres:
		if db == nil {
			return nil, fmt.Errorf("draft store %q requires POSTGRES_DSN", cfg.DraftStore)
		}
		repo := postgres.NewDraftRepository(db, cfg.DraftTTL())
		a.Purger = repo
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown draft store %q", cfg.DraftStore)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func ledgerName(db *sql.DB) string {
	if db != nil {
		return "postgres"
	}
	return "memory"
}
