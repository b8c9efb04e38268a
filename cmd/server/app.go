package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"cv-generator/internal/adapter/notify"
	"cv-generator/internal/adapter/repository"
	"cv-generator/internal/domain"
	"cv-generator/internal/feature"
	"cv-generator/internal/filemanager"
	"cv-generator/internal/infrastructure/config"
	"cv-generator/internal/infrastructure/logger"
	"cv-generator/internal/infrastructure/migration"
	"cv-generator/internal/render"
	"cv-generator/internal/usecase"
	"cv-generator/pkg/ai"
	infra "cv-generator/pkg/infrastructure"
	"cv-generator/pkg/storage"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// app holds the components shared by every command.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	jobs       usecase.JobStore
	resumes    usecase.ResumeSource
	enrichment usecase.EnrichmentSource
	redis      *notify.RedisNotifier
	notifier   usecase.StatusNotifier
	storage    *storage.LocalStorage
	signer     *storage.Signer
	templates  *render.Registry
	worker     *usecase.Worker
	closers    []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"), cmd.String("env"))
	if err != nil {
		return nil, nil, err
	}
	l := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return cfg, l, nil
}

// openStores connects the configured database and applies migrations.
func (a *app) openStores(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case "postgres":
		pool, err := infra.NewJobsPool(ctx, a.cfg.Database.URL, a.cfg.Database.MaxConnections)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := migration.RunMigrations(ctx, pool, a.logger); err != nil {
			return err
		}
		store := repository.NewPostgresStore(pool)
		a.jobs, a.resumes = store, store
		a.enrichment = repository.NewEnrichmentReader(pool)
	default:
		db, err := repository.OpenGorm(a.cfg.Database.Driver, a.cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("open %s: %w", a.cfg.Database.Driver, err)
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		}
		store := repository.NewGormStore(db)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.jobs, a.resumes = store, store
	}
	a.logger.Info("job store ready", "driver", a.cfg.Database.Driver)
	return nil
}

func build(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, l, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: l}
	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		rdb, err := notify.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.redis = notify.NewRedisNotifier(rdb, l)
		a.notifier = a.redis
	}

	secret := cfg.Storage.SigningSecret
	if secret == "" {
		secret = uuid.NewString()
		l.Warn("storage.signing_secret not set, download links will not survive a restart")
	}
	a.signer = storage.NewSigner(secret)
	a.storage = storage.NewLocalStorage(cfg.Storage.BasePath, cfg.Storage.PublicBaseURL, a.signer)

	var pdf filemanager.PDFRenderer
	if cfg.PDF.Enabled {
		pdf = infra.NewChromedpRenderer(cfg.PDF.ChromePath)
	}
	files := filemanager.New(a.storage, pdf,
		filemanager.WithStageTimeouts(filemanager.StageTimeouts{
			Acquire: cfg.PDF.AcquireTimeout,
			Load:    cfg.PDF.LoadTimeout,
			Print:   cfg.PDF.PrintTimeout,
		}),
		filemanager.WithURLTTL(cfg.Storage.URLTTL),
		filemanager.WithLogger(l),
	)

	a.templates, err = render.NewRegistry(render.WithLogger(l), render.WithLanguage(cfg.Jobs.Language))
	if err != nil {
		a.Close()
		return nil, err
	}
	featureOpts := []feature.Option{feature.WithConcurrency(cfg.Jobs.FeatureConcurrency), feature.WithLogger(l)}
	if cfg.AI.URL != "" {
		client := ai.NewClient(cfg.AI.URL,
			ai.WithHTTPClient(&http.Client{Timeout: cfg.AI.Timeout}),
			ai.WithLanguage(cfg.Jobs.Language),
			ai.WithLogger(l),
		)
		featureOpts = append(featureOpts, feature.WithFactory(domain.FeaturePodcast, feature.PodcastFactory(client, cfg.Jobs.Language)))
		l.Info("podcast scripts enabled", "ai_url", cfg.AI.URL)
	}
	features := feature.NewRegistry(featureOpts...)

	a.worker = usecase.NewWorker(usecase.WorkerDeps{
		Jobs:       a.jobs,
		Resumes:    a.resumes,
		Enrichment: a.enrichment,
		Features:   features,
		Templates:  a.templates,
		Files:      files,
		Notifier:   a.notifier,
	},
		usecase.WithDeadline(cfg.Jobs.Deadline),
		usecase.WithMaxRetries(cfg.Jobs.MaxRetries),
		usecase.WithWorkerLogger(l),
	)
	return a, nil
}

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, l, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a := &app{cfg: cfg, logger: l}
	defer a.Close()
	return a.openStores(ctx)
}
