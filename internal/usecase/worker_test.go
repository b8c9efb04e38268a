package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cv-generator/internal/domain"
	"cv-generator/internal/feature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startedTask moves job-1 into generating and returns the dispatched task
// without running it.
func startedTask(t *testing.T, h *harness, features ...string) Task {
	t.Helper()
	h.resumes["job-1"] = sampleParsed()
	_, err := h.orch.Initiate(context.Background(), InitiateRequest{JobID: "job-1", UserID: "user-1", TemplateID: "classic", Features: features})
	require.NoError(t, err)
	require.Len(t, h.dispatcher.tasks, 1)
	return h.dispatcher.tasks[0]
}

func generatorFactory(fn feature.GeneratorFunc) feature.Factory {
	return func() (feature.Generator, error) { return fn, nil }
}

func htmlFile(h *harness) string {
	h.storage.mu.Lock()
	defer h.storage.mu.Unlock()
	for p, b := range h.storage.files {
		if strings.HasSuffix(p, ".html") {
			return string(b)
		}
	}
	return ""
}

func TestWorker_DeadlineFailsJob(t *testing.T) {
	blocking := generatorFactory(func(ctx context.Context, _ feature.Input) (feature.Output, error) {
		<-ctx.Done()
		return feature.Output{}, ctx.Err()
	})
	h := newHarness(harnessOpts{
		deadline:    50 * time.Millisecond,
		featureOpts: []feature.Option{feature.WithFactory(domain.FeaturePodcast, blocking)},
	}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h, "generate-podcast", "embed-qr-code")

	start := time.Now()
	_, err := h.worker.Execute(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	job := h.jobs.mustGet("job-1")
	assert.Equal(t, domain.StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "GENERATION_TIMEOUT", job.Error.Code)
	assert.Contains(t, job.Error.Message, "generation timed out")
	require.NotNil(t, job.RecoveryInfo)
	assert.True(t, job.RecoveryInfo.IsTimeout)
	assert.True(t, job.RecoveryInfo.Retryable)
	assert.Equal(t, 300, job.RecoveryInfo.RecommendedRetryDelay)
	assert.Equal(t, domain.FeatureFailed, job.FeatureTracking[domain.FeaturePodcast].Status)
	for id, p := range job.FeatureTracking {
		assert.NotEqual(t, domain.FeaturePending, p.Status, id)
		assert.NotEqual(t, domain.FeatureProcessing, p.Status, id)
	}
	assert.Empty(t, job.GeneratedFiles.HTMLURL)
}

func TestWorker_DeadlineWithHungGenerator(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	hung := generatorFactory(func(context.Context, feature.Input) (feature.Output, error) {
		<-release
		return feature.Output{}, nil
	})
	h := newHarness(harnessOpts{
		deadline:    50 * time.Millisecond,
		featureOpts: []feature.Option{feature.WithFactory(domain.FeaturePodcast, hung)},
	}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h, "generate-podcast")

	start := time.Now()
	_, err := h.worker.Execute(context.Background(), task)
	assert.ErrorIs(t, err, domain.ErrGenerationTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	job := h.jobs.mustGet("job-1")
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "GENERATION_TIMEOUT", job.Error.Code)
	require.NotNil(t, job.RecoveryInfo)
	assert.True(t, job.RecoveryInfo.IsTimeout)
	assert.Equal(t, domain.FeatureFailed, job.FeatureTracking[domain.FeaturePodcast].Status)
}

func TestWorker_FeatureFailuresAreIsolated(t *testing.T) {
	h := newHarness(harnessOpts{featureOpts: []feature.Option{
		feature.WithFactory(domain.FeaturePodcast, generatorFactory(func(context.Context, feature.Input) (feature.Output, error) {
			return feature.Output{}, errors.New("tts provider down")
		})),
		feature.WithFactory(domain.FeatureTimeline, generatorFactory(func(context.Context, feature.Input) (feature.Output, error) {
			panic("boom")
		})),
	}}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h, "generate-podcast", "interactive-timeline", "embed-qr-code")

	out, err := h.worker.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, []domain.FeatureID{domain.FeatureQRCode}, out.Features)

	job := h.jobs.mustGet("job-1")
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, domain.StepDone, job.CurrentStep)
	assert.Equal(t, 100, job.Progress())
	assert.Equal(t, domain.FeatureCompleted, job.FeatureTracking[domain.FeatureQRCode].Status)
	assert.Equal(t, domain.FeatureFailed, job.FeatureTracking[domain.FeaturePodcast].Status)
	assert.Contains(t, job.FeatureTracking[domain.FeaturePodcast].Error, "tts provider down")
	assert.Equal(t, domain.FeatureFailed, job.FeatureTracking[domain.FeatureTimeline].Status)

	html := htmlFile(h)
	assert.Contains(t, html, `id="cv-slot-qrCode"`)
	assert.NotContains(t, html, `id="cv-slot-podcast"`)
	assert.NotContains(t, html, `id="cv-slot-timeline"`)
}

func TestWorker_HTMLFailureFailsJob(t *testing.T) {
	h := newHarness(harnessOpts{}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h, "embed-qr-code")
	h.storage.SaveErr = errors.New("connection refused")

	_, err := h.worker.Execute(context.Background(), task)
	require.Error(t, err)

	job := h.jobs.mustGet("job-1")
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "NETWORK_ERROR", job.Error.Code)
	assert.True(t, job.RecoveryInfo.IsNetworkError)
	assert.Empty(t, job.GeneratedFiles)
}

func TestWorker_EmptyHTMLURLFailsJob(t *testing.T) {
	h := newHarness(harnessOpts{}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h, "embed-qr-code")
	h.storage.EmptyURL = true

	_, err := h.worker.Execute(context.Background(), task)
	require.ErrorIs(t, err, domain.ErrMissingHTML)

	job := h.jobs.mustGet("job-1")
	assert.Equal(t, domain.StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Contains(t, job.Error.Message, "html url")
	require.NotNil(t, job.RecoveryInfo)
	assert.Empty(t, job.GeneratedFiles.HTMLURL)
}

func TestWorker_PDFFailureStillCompletes(t *testing.T) {
	h := newHarness(harnessOpts{}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h)
	h.pdf.PrintErr = errors.New("printToPDF: target crashed")

	_, err := h.worker.Execute(context.Background(), task)
	require.NoError(t, err)

	job := h.jobs.mustGet("job-1")
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.NotEmpty(t, job.GeneratedFiles.HTMLURL)
	assert.Empty(t, job.GeneratedFiles.PDFURL)
	require.Len(t, job.Warnings, 1)
	assert.Contains(t, job.Warnings[0], "target crashed")
}

func TestWorker_InvalidResumeIsPermanent(t *testing.T) {
	h := newHarness(harnessOpts{}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h)
	h.resumes["job-1"] = map[string]interface{}{"summary": 42}

	_, err := h.worker.Execute(context.Background(), task)
	require.Error(t, err)

	job := h.jobs.mustGet("job-1")
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "VALIDATION_ERROR", job.Error.Code)
	assert.False(t, job.RecoveryInfo.Retryable)

	_, err = h.orch.Retry(context.Background(), "job-1", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotRetryable)
}

func TestWorker_CancelledJobIsNotOverwritten(t *testing.T) {
	var h *harness
	cancelling := generatorFactory(func(ctx context.Context, _ feature.Input) (feature.Output, error) {
		_, err := h.orch.Cancel(ctx, "job-1", "user-1")
		return feature.Output{HTML: "<p>late</p>"}, err
	})
	h = newHarness(harnessOpts{featureOpts: []feature.Option{
		feature.WithFactory(domain.FeatureQRCode, cancelling),
		feature.WithConcurrency(1),
	}}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h, "embed-qr-code")

	_, err := h.worker.Execute(context.Background(), task)
	require.Error(t, err)

	job := h.jobs.mustGet("job-1")
	assert.Equal(t, domain.StatusCancelled, job.Status)
	assert.Empty(t, job.GeneratedFiles.HTMLURL)
	assert.Nil(t, job.Error)
}

func TestWorker_ParentCancellationLeavesRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopping := generatorFactory(func(gctx context.Context, _ feature.Input) (feature.Output, error) {
		cancel()
		<-gctx.Done()
		return feature.Output{}, gctx.Err()
	})
	h := newHarness(harnessOpts{featureOpts: []feature.Option{feature.WithFactory(domain.FeatureQRCode, stopping)}}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h, "embed-qr-code")

	err := h.worker.Handle(ctx, task)
	assert.ErrorIs(t, err, context.Canceled, "interrupted runs are handed back for redelivery")
	assert.Equal(t, domain.StatusGenerating, h.jobs.mustGet("job-1").Status)
}

func TestWorker_UnknownTemplateFallsBack(t *testing.T) {
	h := newHarness(harnessOpts{}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h)
	task.TemplateID = "does-not-exist"

	out, err := h.worker.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "Ada Lovelace")
	assert.Equal(t, domain.StatusCompleted, h.jobs.mustGet("job-1").Status)
}

func TestWorker_SkipsJobNotGenerating(t *testing.T) {
	h := newHarness(harnessOpts{}, pendingJob("job-1", "user-1"))
	h.resumes["job-1"] = sampleParsed()

	_, err := h.worker.Execute(context.Background(), Task{JobID: "job-1", UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusPending, h.jobs.mustGet("job-1").Status)
}

func TestWorker_HandleReportsUnavailableJob(t *testing.T) {
	h := newHarness(harnessOpts{}, pendingJob("job-1", "user-1"))
	task := startedTask(t, h)

	assert.NoError(t, h.worker.Handle(context.Background(), Task{JobID: "missing"}))

	h.jobs.GetErr = errors.New("connection reset by peer")
	err := h.worker.Handle(context.Background(), task)
	assert.ErrorIs(t, err, ErrJobUnavailable)
	assert.True(t, domain.IsKind(err, domain.KindTransient))
}
