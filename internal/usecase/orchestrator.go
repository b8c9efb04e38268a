package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cv-generator/internal/domain"

	"github.com/google/uuid"
)

// Orchestrator is the entry point for generation requests. It validates and
// records the request synchronously and hands execution to a Dispatcher or,
// for the synchronous variant, to the Worker directly.
type Orchestrator struct {
	jobs       JobStore
	resumes    ResumeSource
	templates  TemplateSource
	dispatcher Dispatcher
	worker     *Worker
	classifier ErrorClassifier
	notifier   StatusNotifier
	maxRetries int
	logger     *slog.Logger
	now        func() time.Time
}

type OrchestratorDeps struct {
	Jobs       JobStore
	Resumes    ResumeSource
	Templates  TemplateSource
	Dispatcher Dispatcher
	Worker     *Worker
	Classifier ErrorClassifier
	Notifier   StatusNotifier
}

type OrchestratorOption func(*Orchestrator)

func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithRetryLimit(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

func NewOrchestrator(deps OrchestratorDeps, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		jobs:       deps.Jobs,
		resumes:    deps.Resumes,
		templates:  deps.Templates,
		dispatcher: deps.Dispatcher,
		worker:     deps.Worker,
		classifier: deps.Classifier,
		notifier:   deps.Notifier,
		maxRetries: domain.DefaultMaxRetries,
		logger:     slog.Default(),
		now:        time.Now,
	}
	if o.classifier == nil {
		o.classifier = KeywordClassifier{}
	}
	if o.notifier == nil {
		o.notifier = nopNotifier{}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type InitiateRequest struct {
	JobID      string            `json:"jobId"`
	UserID     string            `json:"userId"`
	TemplateID string            `json:"templateId"`
	Features   []string          `json:"features"`
	Options    map[string]string `json:"options,omitempty"`
}

type InitiateResult struct {
	JobID            string   `json:"jobId"`
	Status           string   `json:"status"`
	EstimatedTime    int      `json:"estimatedTime"`
	SelectedFeatures []string `json:"selectedFeatures"`
	Message          string   `json:"message"`
}

type GeneratedCV struct {
	HTML     string                `json:"html"`
	Files    domain.GeneratedFiles `json:"files"`
	Features []string              `json:"features"`
	Warnings []string              `json:"warnings,omitempty"`
}

type GenerateResult struct {
	Success     bool        `json:"success"`
	GeneratedCV GeneratedCV `json:"generatedCV"`
}

// Initiate validates the request, moves the job to generating and dispatches
// the background task.
func (o *Orchestrator) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	job, task, err := o.start(ctx, req, "orchestrator.initiate")
	if err != nil {
		return nil, err
	}

	if err := o.dispatch(ctx, job, task); err != nil {
		return nil, err
	}

	o.logger.Info("generation initiated", "job_id", job.ID, "template", job.SelectedTemplate, "features", len(job.SelectedFeatures), "estimate", job.EstimatedTime)
	return &InitiateResult{
		JobID:            job.ID,
		Status:           "initiated",
		EstimatedTime:    job.EstimatedTime,
		SelectedFeatures: domain.FeatureStrings(job.SelectedFeatures),
		Message:          fmt.Sprintf("CV generation started, estimated %d seconds", job.EstimatedTime),
	}, nil
}

// Generate is the synchronous variant of Initiate: the pipeline runs inline
// under the worker deadline.
func (o *Orchestrator) Generate(ctx context.Context, req InitiateRequest) (*GenerateResult, error) {
	if o.worker == nil {
		return nil, domain.E(domain.KindUnknown, "orchestrator.generate", errors.New("synchronous generation not configured"))
	}
	_, task, err := o.start(ctx, req, "orchestrator.generate")
	if err != nil {
		return nil, err
	}

	out, err := o.worker.Execute(ctx, task)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{
		Success: true,
		GeneratedCV: GeneratedCV{
			HTML:     out.HTML,
			Files:    out.Files.Generated(),
			Features: domain.FeatureStrings(out.Features),
			Warnings: out.Files.Errors,
		},
	}, nil
}

// Retry restarts a failed job with the same template and features.
func (o *Orchestrator) Retry(ctx context.Context, jobID, userID string) (*InitiateResult, error) {
	const op = "orchestrator.retry"
	job, err := o.load(ctx, jobID, userID, op)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusFailed {
		return nil, domain.E(domain.KindValidation, op, domain.ErrInvalidTransition)
	}
	if job.RetryCount >= o.maxRetries {
		return nil, domain.E(domain.KindValidation, op, domain.ErrRetryLimit)
	}
	if job.RecoveryInfo != nil && !job.RecoveryInfo.Retryable {
		return nil, domain.E(domain.KindValidation, op, domain.ErrNotRetryable)
	}

	now := o.now()
	job.RetryCount++
	job.InitTracking(job.SelectedFeatures)
	if err := job.Start(now, EstimateSeconds(job.SelectedFeatures)); err != nil {
		return nil, err
	}
	if err := o.save(ctx, job); err != nil {
		return nil, err
	}

	task := o.newTask(job)
	task.Attempt = job.RetryCount
	if err := o.dispatch(ctx, job, task); err != nil {
		return nil, err
	}

	o.logger.Info("generation retried", "job_id", job.ID, "retry", job.RetryCount)
	return &InitiateResult{
		JobID:            job.ID,
		Status:           "initiated",
		EstimatedTime:    job.EstimatedTime,
		SelectedFeatures: domain.FeatureStrings(job.SelectedFeatures),
		Message:          fmt.Sprintf("retry %d of %d started", job.RetryCount, o.maxRetries),
	}, nil
}

// Cancel stops a pending or generating job.
func (o *Orchestrator) Cancel(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	const op = "orchestrator.cancel"
	job, err := o.load(ctx, jobID, userID, op)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(job.Status, domain.StatusCancelled) {
		return nil, domain.E(domain.KindValidation, op, domain.ErrInvalidTransition)
	}

	now := o.now()
	job.Status = domain.StatusCancelled
	job.FailOpenFeatures("cancelled")
	job.CompletedAt = &now
	job.Touch(now)
	if err := o.save(ctx, job); err != nil {
		return nil, err
	}
	if o.dispatcher != nil && o.dispatcher.Cancel(job.ID) {
		o.logger.Info("in-flight generation cancelled", "job_id", job.ID)
	}
	return job, nil
}

// start performs the shared validation and moves the job to generating.
func (o *Orchestrator) start(ctx context.Context, req InitiateRequest, op string) (*domain.Job, Task, error) {
	job, err := o.load(ctx, req.JobID, req.UserID, op)
	if err != nil {
		return nil, Task{}, err
	}
	if _, err := o.resumes.GetParsedData(ctx, job.ID); err != nil {
		if errors.Is(err, domain.ErrResumeNotFound) {
			return nil, Task{}, domain.E(domain.KindNotFound, op, domain.ErrResumeNotFound)
		}
		return nil, Task{}, domain.E(domain.KindTransient, op, err)
	}
	if job.Status != domain.StatusPending {
		return nil, Task{}, domain.E(domain.KindValidation, op, fmt.Errorf("%w: job is %s", domain.ErrInvalidTransition, job.Status))
	}

	features := domain.ParseFeatureIDs(req.Features)
	job.SelectedTemplate = o.templates.Resolve(req.TemplateID)
	job.Options = req.Options
	job.InitTracking(features)
	if err := job.Start(o.now(), EstimateSeconds(features)); err != nil {
		return nil, Task{}, err
	}
	if err := o.save(ctx, job); err != nil {
		return nil, Task{}, err
	}
	return job, o.newTask(job), nil
}

func (o *Orchestrator) load(ctx context.Context, jobID, userID, op string) (*domain.Job, error) {
	if jobID == "" {
		return nil, domain.E(domain.KindValidation, op, domain.ErrMissingJobID)
	}
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, domain.E(domain.KindNotFound, op, domain.ErrJobNotFound)
		}
		return nil, domain.E(domain.KindTransient, op, err)
	}
	if job.UserID != userID {
		return nil, domain.E(domain.KindAuthorization, op, domain.ErrNotOwner)
	}
	return job, nil
}

func (o *Orchestrator) save(ctx context.Context, job *domain.Job) error {
	if err := o.jobs.Save(ctx, job); err != nil {
		return domain.E(domain.KindTransient, "jobs.save", err)
	}
	if err := o.notifier.Notify(ctx, job); err != nil {
		o.logger.Debug("status notification failed", "job_id", job.ID, "error", err)
	}
	return nil
}

func (o *Orchestrator) newTask(job *domain.Job) Task {
	return Task{
		ID:         uuid.NewString(),
		JobID:      job.ID,
		UserID:     job.UserID,
		TemplateID: job.SelectedTemplate,
		Features:   job.SelectedFeatures,
		Options:    job.Options,
		Attempt:    job.RetryCount,
		EnqueuedAt: o.now(),
	}
}

// dispatch hands the task over; on failure the job is recorded as failed so
// it does not sit in generating forever.
func (o *Orchestrator) dispatch(ctx context.Context, job *domain.Job, task Task) error {
	if o.dispatcher == nil {
		return o.rollback(ctx, job, errors.New("dispatcher not configured"))
	}
	if err := o.dispatcher.Dispatch(ctx, task); err != nil {
		return o.rollback(ctx, job, err)
	}
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, job *domain.Job, cause error) error {
	c := o.classifier.Classify(cause)
	job.Fail(o.now(), domain.JobError{Code: c.Code, Message: cause.Error()}, c.RecoveryInfo(job.RetryCount, o.maxRetries))
	if err := o.save(ctx, job); err != nil {
		o.logger.Error("could not record dispatch failure", "job_id", job.ID, "error", err)
	}
	o.logger.Error("dispatch failed", "job_id", job.ID, "error", cause)
	return domain.E(domain.KindTransient, "orchestrator.dispatch", cause)
}
