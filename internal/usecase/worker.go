package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cv-generator/internal/domain"
	"cv-generator/internal/feature"
	"cv-generator/internal/filemanager"
	"cv-generator/internal/model"
)

// DefaultDeadline bounds one generation run end to end.
const DefaultDeadline = 12 * time.Minute

// finalWriteTimeout bounds the terminal write issued after the run context
// has already ended.
const finalWriteTimeout = 10 * time.Second

var errJobNotWritable = errors.New("job no longer accepts worker updates")

// ErrJobUnavailable marks a task whose job record could not be read. Nothing
// was recorded, so the task may be delivered again.
var ErrJobUnavailable = errors.New("job record unavailable")

// Worker executes generation tasks against the job store.
type Worker struct {
	jobs       JobStore
	resumes    ResumeSource
	enrichment EnrichmentSource
	features   FeatureRunner
	templates  TemplateSource
	files      FilePersister
	classifier ErrorClassifier
	notifier   StatusNotifier
	deadline   time.Duration
	maxRetries int
	logger     *slog.Logger
	now        func() time.Time
}

type WorkerDeps struct {
	Jobs       JobStore
	Resumes    ResumeSource
	Enrichment EnrichmentSource
	Features   FeatureRunner
	Templates  TemplateSource
	Files      FilePersister
	Classifier ErrorClassifier
	Notifier   StatusNotifier
}

type WorkerOption func(*Worker)

func WithDeadline(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.deadline = d
		}
	}
}

func WithMaxRetries(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxRetries = n
		}
	}
}

func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

func NewWorker(deps WorkerDeps, opts ...WorkerOption) *Worker {
	w := &Worker{
		jobs:       deps.Jobs,
		resumes:    deps.Resumes,
		enrichment: deps.Enrichment,
		features:   deps.Features,
		templates:  deps.Templates,
		files:      deps.Files,
		classifier: deps.Classifier,
		notifier:   deps.Notifier,
		deadline:   DefaultDeadline,
		maxRetries: domain.DefaultMaxRetries,
		logger:     slog.Default(),
		now:        time.Now,
	}
	if w.enrichment == nil {
		w.enrichment = nopEnrichment{}
	}
	if w.classifier == nil {
		w.classifier = KeywordClassifier{}
	}
	if w.notifier == nil {
		w.notifier = nopNotifier{}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Outcome is what a successful run produced.
type Outcome struct {
	HTML     string
	Files    filemanager.Files
	Features []domain.FeatureID
}

// Run executes t and records the result on the job. Every failure ends up on
// the job record.
func (w *Worker) Run(ctx context.Context, t Task) {
	if err := w.Handle(ctx, t); err != nil {
		w.logger.Warn("generation task dropped", "job_id", t.JobID, "task_id", t.ID, "error", err)
	}
}

// Handle is Run for queue consumers. It returns an error only when the task
// is worth delivering again: the job record could not be read, or ctx ended
// mid-run and left the job in generating.
func (w *Worker) Handle(ctx context.Context, t Task) error {
	_, err := w.Execute(ctx, t)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrJobUnavailable) || ctx.Err() != nil {
		return err
	}
	w.logger.Info("generation run ended without result", "job_id", t.JobID, "task_id", t.ID, "error", err)
	return nil
}

// Execute runs the pipeline for t under the worker deadline and records the
// outcome on the job. When the deadline fires first the pipeline context is
// cancelled and the failure is written without waiting for it.
func (w *Worker) Execute(ctx context.Context, t Task) (*Outcome, error) {
	runCtx, cancel := context.WithTimeout(ctx, w.deadline)
	defer cancel()

	job, err := w.jobs.Get(runCtx, t.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, domain.E(domain.KindNotFound, "worker.execute", err)
		}
		return nil, domain.E(domain.KindTransient, "worker.execute", fmt.Errorf("%w: %v", ErrJobUnavailable, err))
	}
	if job.Status != domain.StatusGenerating {
		w.logger.Warn("skipping task for job not in generating state", "job_id", job.ID, "status", job.Status)
		return nil, domain.E(domain.KindValidation, "worker.execute", domain.ErrInvalidTransition)
	}

	tr := &tracker{w: w, job: job, ctx: runCtx}

	type result struct {
		out *Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := w.pipeline(runCtx, t, tr)
		done <- result{out, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			switch {
			case errors.Is(runCtx.Err(), context.DeadlineExceeded):
				res.err = domain.E(domain.KindTimeout, "worker.execute", domain.ErrGenerationTimeout)
			case errors.Is(runCtx.Err(), context.Canceled):
				tr.close()
				return nil, res.err
			}
			return nil, w.fail(ctx, tr, res.err)
		}
		if err := tr.finish(ctx, func(j *domain.Job) error {
			return j.Complete(w.now(), res.out.Files.Generated(), res.out.Files.Errors)
		}); err != nil {
			if errors.Is(err, domain.ErrMissingHTML) {
				return nil, w.fail(ctx, tr, err)
			}
			return nil, err
		}
		w.logger.Info("generation completed", "job_id", job.ID, "template", t.TemplateID, "warnings", len(res.out.Files.Errors))
		return res.out, nil

	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			w.logger.Warn("generation deadline reached", "job_id", job.ID, "deadline", w.deadline)
			return nil, w.fail(ctx, tr, domain.E(domain.KindTimeout, "worker.execute", domain.ErrGenerationTimeout))
		}
		// The caller went away (cancel request or shutdown); the record is
		// left to whoever cancelled it.
		tr.close()
		return nil, runCtx.Err()
	}
}

func (w *Worker) fail(ctx context.Context, tr *tracker, cause error) error {
	c := w.classifier.Classify(cause)
	werr := tr.finish(ctx, func(j *domain.Job) error {
		j.Fail(w.now(), domain.JobError{Code: c.Code, Message: cause.Error()}, c.RecoveryInfo(j.RetryCount, w.maxRetries))
		return nil
	})
	w.logger.Error("generation failed", "job_id", tr.jobID(), "category", c.Category, "retryable", c.Retryable, "error", cause)
	if werr != nil && !errors.Is(werr, errJobNotWritable) {
		return fmt.Errorf("%w (recording failure: %v)", cause, werr)
	}
	return cause
}

func (w *Worker) pipeline(ctx context.Context, t Task, tr *tracker) (*Outcome, error) {
	raw, err := w.resumes.GetParsedData(ctx, t.JobID)
	if err != nil {
		return nil, fmt.Errorf("load parsed resume: %w", err)
	}
	if err := model.ValidateMap(raw); err != nil {
		return nil, domain.E(domain.KindValidation, "resume", err)
	}
	resume := model.FromMap(raw)

	enrichment, err := w.enrichment.Get(ctx, t.JobID, t.UserID)
	if err != nil {
		w.logger.Debug("enrichment unavailable", "job_id", t.JobID, "error", err)
		enrichment = domain.Enrichment{}
	}

	tr.step(domain.StepFeatures)
	res, err := w.features.GenerateFeatures(ctx, feature.Input{
		Resume:     resume,
		JobID:      t.JobID,
		Options:    t.Options,
		Enrichment: enrichment,
	}, t.Features, tr)
	if err != nil {
		return nil, fmt.Errorf("generate features: %w", err)
	}

	tr.step(domain.StepRendering)
	html, err := w.templates.Get(t.TemplateID).Render(resume, t.JobID, t.Features, res)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tr.step(domain.StepPersisting)
	files, err := w.files.Persist(ctx, t.JobID, t.UserID, html)
	if err != nil {
		return nil, fmt.Errorf("persist files: %w", err)
	}
	return &Outcome{HTML: html, Files: files, Features: res.Completed}, nil
}

// write persists job unless it was moved out of generating by someone else.
func (w *Worker) write(ctx context.Context, job *domain.Job) error {
	cur, err := w.jobs.Get(ctx, job.ID)
	if err == nil && cur.Status != domain.StatusGenerating {
		return errJobNotWritable
	}
	if err := w.jobs.Save(ctx, job); err != nil {
		return err
	}
	if err := w.notifier.Notify(ctx, job); err != nil {
		w.logger.Debug("status notification failed", "job_id", job.ID, "error", err)
	}
	return nil
}

// tracker owns the in-memory job during a run. Feature callbacks arrive from
// several goroutines; all writes go through mu and stop once the run has a
// terminal result.
type tracker struct {
	mu     sync.Mutex
	w      *Worker
	job    *domain.Job
	ctx    context.Context
	closed bool
}

func (t *tracker) jobID() string { return t.job.ID }

func (t *tracker) update(fn func(j *domain.Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.ctx.Err() != nil {
		return
	}
	fn(t.job)
	t.job.Touch(t.w.now())
	if err := t.w.write(t.ctx, t.job); err != nil {
		if errors.Is(err, errJobNotWritable) {
			t.closed = true
			return
		}
		t.w.logger.Warn("progress write failed", "job_id", t.job.ID, "error", err)
	}
}

func (t *tracker) step(name string) {
	t.update(func(j *domain.Job) { j.CurrentStep = name })
}

// finish applies the terminal change exactly once, using a fresh context so
// it still lands after the run context ended. When fn refuses the change the
// tracker stays open for a failure to be recorded instead.
func (t *tracker) finish(parent context.Context, fn func(j *domain.Job) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errJobNotWritable
	}
	if err := fn(t.job); err != nil {
		return err
	}
	t.closed = true

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), finalWriteTimeout)
	defer cancel()
	if err := t.w.write(ctx, t.job); err != nil {
		if errors.Is(err, errJobNotWritable) {
			t.w.logger.Info("job changed during run, result discarded", "job_id", t.job.ID)
		}
		return err
	}
	return nil
}

func (t *tracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

func (t *tracker) FeatureStarted(id domain.FeatureID) {
	t.update(func(j *domain.Job) {
		j.SetFeatureProgress(id, domain.FeatureProgress{
			Status:                 domain.FeatureProcessing,
			Progress:               10,
			EstimatedTimeRemaining: id.Estimate(),
		})
	})
}

func (t *tracker) FeatureCompleted(id domain.FeatureID) {
	t.update(func(j *domain.Job) {
		j.SetFeatureProgress(id, domain.FeatureProgress{Status: domain.FeatureCompleted, Progress: 100})
	})
}

func (t *tracker) FeatureFailed(id domain.FeatureID, err error) {
	t.update(func(j *domain.Job) {
		j.SetFeatureProgress(id, domain.FeatureProgress{Status: domain.FeatureFailed, Error: err.Error()})
	})
}
