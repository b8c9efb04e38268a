package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	httpadapter "cv-generator/internal/adapter/http"
	"cv-generator/internal/adapter/queue"
	"cv-generator/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := build(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, l := a.cfg, a.logger

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required to serve the API")
	}

	var dispatcher usecase.Dispatcher
	switch cfg.Queue.Driver {
	case "rabbitmq":
		pub, err := queue.NewRabbitPublisher(cfg.Queue.RabbitURL, cfg.Queue.RabbitQueue)
		if err != nil {
			return err
		}
		defer pub.Close()
		dispatcher = pub
	default:
		pool := queue.NewPool(ctx, a.worker,
			queue.WithWorkers(cfg.Queue.Workers),
			queue.WithQueueSize(cfg.Queue.Size),
			queue.WithPoolLogger(l),
		)
		defer drainPool(pool, l)
		dispatcher = pool
	}

	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Jobs:       a.jobs,
		Resumes:    a.resumes,
		Templates:  a.templates,
		Dispatcher: dispatcher,
		Worker:     a.worker,
		Notifier:   a.notifier,
	},
		usecase.WithRetryLimit(cfg.Jobs.MaxRetries),
		usecase.WithOrchestratorLogger(l),
	)

	janitor := usecase.NewJanitor(a.jobs, a.notifier, usecase.JanitorConfig{
		Deadline:   cfg.Jobs.Deadline,
		Slack:      cfg.Jobs.StaleSlack,
		PendingTTL: cfg.Jobs.PendingTTL,
		MaxRetries: cfg.Jobs.MaxRetries,
	}, l)
	if err := janitor.Start(ctx, cfg.Jobs.JanitorSchedule); err != nil {
		return err
	}
	defer janitor.Stop()

	deps := httpadapter.HandlerDeps{
		Service:   orch,
		Files:     a.storage,
		Verifier:  a.signer,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    l,
	}
	if a.redis != nil {
		deps.Events = a.redis
	}

	server := fiber.New(fiber.Config{DisableStartupMessage: true})
	httpadapter.NewHandler(deps).Register(server)

	errc := make(chan error, 1)
	go func() {
		l.Info("http server listening", "addr", cfg.Server.Addr(), "queue", cfg.Queue.Driver)
		errc <- server.Listen(cfg.Server.Addr())
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	l.Info("shutting down")
	return server.ShutdownWithTimeout(shutdownTimeout)
}

// drainPool lets queued work finish and cancels whatever is still running
// after shutdownTimeout. Cancelled jobs stay in generating until the janitor
// fails them.
func drainPool(p *queue.Pool, l *slog.Logger) {
	l.Info("draining dispatch pool", "queued", p.Len())
	done := make(chan struct{})
	go func() {
		_ = p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		l.Warn("dispatch pool drain timed out, cancelling running tasks")
		_ = p.Abort()
		<-done
	}
}
