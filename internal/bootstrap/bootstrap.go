package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ametelin/docinsights/internal/config"
	"github.com/ametelin/docinsights/internal/core/ports"
	"github.com/ametelin/docinsights/internal/core/quota"
	"github.com/ametelin/docinsights/internal/core/usecase"
	"github.com/ametelin/docinsights/internal/infrastructure/analyzer/insightapi"
	"github.com/ametelin/docinsights/internal/infrastructure/extractor/pdfmeta"
	"github.com/ametelin/docinsights/internal/infrastructure/queue/nats"
	"github.com/ametelin/docinsights/internal/infrastructure/report/xlsxreport"
	"github.com/ametelin/docinsights/internal/infrastructure/repository/postgres"
	"github.com/ametelin/docinsights/internal/infrastructure/resilience"
	"github.com/ametelin/docinsights/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue       ports.MessageQueue
	Repo        ports.DocumentRepository
	Ledger      ports.QuotaLedger
	LifecycleUC ports.DocumentLifecycle
	ProcessUC   ports.DocumentProcessor
	InsightsUC  ports.InsightsService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	quotaStore := postgres.NewQuotaRepository(db)

	plans, err := config.LoadPlanCatalog(cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load plan catalog: %w", err)
	}
	ledger := quota.NewLedger(quotaStore, plans)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{Executor: executor})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	analyzer := insightapi.New(cfg.AnalyzerURL, executor)
	probe := pdfmeta.NewProbe(storage)
	renderer := xlsxreport.NewRenderer()

	lifecycleUC := usecase.NewLifecycleUseCase(repo, ledger, storage, queue, probe, logger, cfg.MaxUploadBytes)
	processUC := usecase.NewAnalyzeDocumentUseCase(
		repo,
		analyzer,
		lifecycleUC,
		logger,
		time.Duration(cfg.AnalyzerTimeoutSeconds)*time.Second,
	)
	insightsUC := usecase.NewInsightsUseCase(repo, renderer)

	return &App{
		Config: cfg,

		Queue:       queue,
		Repo:        repo,
		Ledger:      ledger,
		LifecycleUC: lifecycleUC,
		ProcessUC:   processUC,
		InsightsUC:  insightsUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
