package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cv-generator/internal/domain"

	"github.com/robfig/cron/v3"
)

const (
	DefaultJanitorSchedule = "@every 1m"
	DefaultPendingTTL      = 24 * time.Hour
	DefaultStaleSlack      = 2 * time.Minute
)

// Janitor repairs records left behind by crashed workers and abandoned
// requests.
type Janitor struct {
	jobs       JobStore
	notifier   StatusNotifier
	classifier ErrorClassifier
	deadline   time.Duration
	slack      time.Duration
	pendingTTL time.Duration
	maxRetries int
	logger     *slog.Logger
	now        func() time.Time
	cron       *cron.Cron
}

type JanitorConfig struct {
	Deadline   time.Duration
	Slack      time.Duration
	PendingTTL time.Duration
	MaxRetries int
}

func NewJanitor(jobs JobStore, notifier StatusNotifier, cfg JanitorConfig, logger *slog.Logger) *Janitor {
	j := &Janitor{
		jobs:       jobs,
		notifier:   notifier,
		classifier: KeywordClassifier{},
		deadline:   cfg.Deadline,
		slack:      cfg.Slack,
		pendingTTL: cfg.PendingTTL,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
		now:        time.Now,
	}
	if j.deadline <= 0 {
		j.deadline = DefaultDeadline
	}
	if j.slack <= 0 {
		j.slack = DefaultStaleSlack
	}
	if j.pendingTTL <= 0 {
		j.pendingTTL = DefaultPendingTTL
	}
	if j.maxRetries <= 0 {
		j.maxRetries = domain.DefaultMaxRetries
	}
	if j.notifier == nil {
		j.notifier = nopNotifier{}
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	return j
}

type SweepResult struct {
	TimedOut int
	Expired  int
}

// Sweep fails generating jobs that outlived the deadline and expires pending
// jobs older than the pending TTL.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := j.now()

	staleBefore := now.Add(-(j.deadline + j.slack))
	stale, err := j.jobs.ListByStatus(ctx, domain.StatusGenerating, staleBefore)
	if err != nil {
		return res, fmt.Errorf("list generating jobs: %w", err)
	}
	timeoutErr := domain.E(domain.KindTimeout, "janitor", domain.ErrGenerationTimeout)
	c := j.classifier.Classify(timeoutErr)
	for _, job := range stale {
		if job.StartedAt != nil && job.StartedAt.After(staleBefore) {
			continue
		}
		job.Fail(now, domain.JobError{Code: c.Code, Message: timeoutErr.Error()}, c.RecoveryInfo(job.RetryCount, j.maxRetries))
		if err := j.save(ctx, job); err != nil {
			return res, err
		}
		res.TimedOut++
	}

	expireBefore := now.Add(-j.pendingTTL)
	pending, err := j.jobs.ListByStatus(ctx, domain.StatusPending, expireBefore)
	if err != nil {
		return res, fmt.Errorf("list pending jobs: %w", err)
	}
	for _, job := range pending {
		if job.CreatedAt.After(expireBefore) {
			continue
		}
		job.Status = domain.StatusExpired
		job.Touch(now)
		if err := j.save(ctx, job); err != nil {
			return res, err
		}
		res.Expired++
	}

	if res.TimedOut > 0 || res.Expired > 0 {
		j.logger.Info("janitor sweep", "timed_out", res.TimedOut, "expired", res.Expired)
	}
	return res, nil
}

func (j *Janitor) save(ctx context.Context, job *domain.Job) error {
	if err := j.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	if err := j.notifier.Notify(ctx, job); err != nil {
		j.logger.Debug("status notification failed", "job_id", job.ID, "error", err)
	}
	return nil
}

// Start schedules Sweep on spec (standard cron syntax or "@every <duration>").
func (j *Janitor) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultJanitorSchedule
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("janitor sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule janitor %q: %w", spec, err)
	}
	j.cron = c
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}
