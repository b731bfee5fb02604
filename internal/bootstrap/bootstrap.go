package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-ovchinnikov/export-compliance/internal/config"
	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
	"github.com/m-ovchinnikov/export-compliance/internal/core/ports"
	"github.com/m-ovchinnikov/export-compliance/internal/core/usecase"
	rediscache "github.com/m-ovchinnikov/export-compliance/internal/infrastructure/cache/redis"
	"github.com/m-ovchinnikov/export-compliance/internal/infrastructure/inspect"
	natsqueue "github.com/m-ovchinnikov/export-compliance/internal/infrastructure/queue/nats"
	"github.com/m-ovchinnikov/export-compliance/internal/infrastructure/renderer/excel"
	"github.com/m-ovchinnikov/export-compliance/internal/infrastructure/repository/postgres"
	"github.com/m-ovchinnikov/export-compliance/internal/infrastructure/resilience"
	"github.com/m-ovchinnikov/export-compliance/internal/infrastructure/rules"
	"github.com/m-ovchinnikov/export-compliance/internal/infrastructure/storage/localfs"
)

// App holds every wired dependency shared by the api and worker binaries.
type App struct {
	Config config.Config

	Evaluator  *usecase.EvaluateUseCase
	Reconciler *usecase.ReconcileUseCase
	Lifecycle  *usecase.LifecycleUseCase
	Documents  ports.DocumentStore
	Events     ports.EventBus

	db       *sql.DB
	closeFns []func()
}

// New wires infrastructure bottom-up: database, storage, rules, cache,
// queue, then the use cases on top. Partial failures close what was
// already opened.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.db = db
	app.closeFns = append(app.closeFns, func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Warn("close postgres", "error", closeErr)
		}
	})

	shipments := postgres.NewShipmentRepository(db)
	documents := postgres.NewDocumentStore(db)
	if err := shipments.EnsureSchema(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure shipment schema: %w", err)
	}
	if err := documents.EnsureSchema(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure document schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	table, err := loadRuleTable(cfg.RulesPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load rule table: %w", err)
	}

	cache, err := rediscache.New(cfg.RedisURL, time.Duration(cfg.RequirementCacheTTLSec)*time.Second)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init requirement cache: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	events, err := natsqueue.NewWithOptions(
		cfg.NATSURL,
		cfg.NATSShipmentSubject,
		cfg.NATSDocumentSubject,
		natsqueue.Options{ResilienceExecutor: executor},
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	app.closeFns = append(app.closeFns, events.Close)

	renderer := excel.New(storage, executor)
	inspector := inspect.New(cfg.UploadMaxBytes)
	locker := usecase.NewRecordLocker()

	var requirementCache ports.RequirementCache
	if cache != nil {
		requirementCache = cache
		app.closeFns = append(app.closeFns, func() {
			if closeErr := cache.Close(); closeErr != nil {
				slog.Warn("close redis", "error", closeErr)
			}
		})
	}

	app.Evaluator = usecase.NewEvaluateUseCase(shipments, requirementCache, table)
	app.Reconciler = usecase.NewReconcileUseCase(app.Evaluator, documents, locker)
	app.Lifecycle = usecase.NewLifecycleUseCase(shipments, documents, renderer, storage, inspector, events, locker)
	app.Documents = documents
	app.Events = events

	return app, nil
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func loadRuleTable(path string) (domain.RuleTable, error) {
	if path == "" {
		return rules.LoadDefault()
	}
	return rules.LoadFile(path)
}
