package usecase

import (
	"context"
	"testing"
	"time"

	"cv-generator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) time.Time { return now.Add(-d) }

	stale := &domain.Job{ID: "stale", UserID: "u", Status: domain.StatusPending, CreatedAt: at(time.Hour), UpdatedAt: at(time.Hour)}
	stale.InitTracking([]domain.FeatureID{domain.FeaturePodcast})
	require.NoError(t, stale.Start(at(20*time.Minute), 200))

	fresh := &domain.Job{ID: "fresh", UserID: "u", Status: domain.StatusPending, CreatedAt: at(time.Hour), UpdatedAt: at(time.Hour)}
	require.NoError(t, fresh.Start(at(time.Minute), 66))

	old := &domain.Job{ID: "old", UserID: "u", Status: domain.StatusPending, CreatedAt: at(48 * time.Hour), UpdatedAt: at(48 * time.Hour)}
	young := &domain.Job{ID: "young", UserID: "u", Status: domain.StatusPending, CreatedAt: at(time.Hour), UpdatedAt: at(time.Hour)}
	done := &domain.Job{ID: "done", UserID: "u", Status: domain.StatusCompleted, CreatedAt: at(72 * time.Hour), UpdatedAt: at(72 * time.Hour)}

	jobs := newMemJobStore(stale, fresh, old, young, done)
	notifier := &recordingNotifier{}
	j := NewJanitor(jobs, notifier, JanitorConfig{}, nil)
	j.now = func() time.Time { return now }

	res, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{TimedOut: 1, Expired: 1}, res)

	got := jobs.mustGet("stale")
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "GENERATION_TIMEOUT", got.Error.Code)
	assert.True(t, got.RecoveryInfo.IsTimeout)
	assert.Equal(t, domain.FeatureFailed, got.FeatureTracking[domain.FeaturePodcast].Status)

	assert.Equal(t, domain.StatusGenerating, jobs.mustGet("fresh").Status)
	assert.Equal(t, domain.StatusExpired, jobs.mustGet("old").Status)
	assert.Equal(t, domain.StatusPending, jobs.mustGet("young").Status)
	assert.Equal(t, domain.StatusCompleted, jobs.mustGet("done").Status)
	assert.Equal(t, []domain.JobStatus{domain.StatusFailed, domain.StatusExpired}, notifier.statuses)

	res, err = j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestJanitor_StartRejectsBadSchedule(t *testing.T) {
	j := NewJanitor(newMemJobStore(), nil, JanitorConfig{}, nil)
	assert.Error(t, j.Start(context.Background(), "every now and then"))
	j.Stop()
}

func TestJanitor_StartRunsSweeps(t *testing.T) {
	old := pendingJob("old", "u")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	old.UpdatedAt = old.CreatedAt
	jobs := newMemJobStore(old)

	j := NewJanitor(jobs, nil, JanitorConfig{}, nil)
	require.NoError(t, j.Start(context.Background(), "@every 1s"))
	defer j.Stop()

	assert.Eventually(t, func() bool {
		return jobs.mustGet("old").Status == domain.StatusExpired
	}, 3*time.Second, 50*time.Millisecond)
}
