package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cv-generator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := OpenGorm("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	s := NewGormStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleJob(id string, created time.Time) *domain.Job {
	return &domain.Job{ID: id, UserID: "user-1", Status: domain.StatusPending, CreatedAt: created, UpdatedAt: created}
}

// storeContract runs the same checks against any store.
func storeContract(t *testing.T, s interface {
	Get(ctx context.Context, id string) (*domain.Job, error)
	Save(ctx context.Context, job *domain.Job) error
	CountPendingBefore(ctx context.Context, t time.Time) (int, error)
	ListByStatus(ctx context.Context, status domain.JobStatus, before time.Time) ([]*domain.Job, error)
	GetParsedData(ctx context.Context, jobID string) (map[string]interface{}, error)
	SaveParsedData(ctx context.Context, jobID string, data map[string]interface{}) error
}) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	j := sampleJob("job-1", base)
	require.NoError(t, s.Save(ctx, j))
	require.NoError(t, s.Save(ctx, sampleJob("job-0", base.Add(-time.Hour))))

	j.InitTracking([]domain.FeatureID{domain.FeatureQRCode, domain.FeaturePodcast})
	j.Options = map[string]string{"language": "pt"}
	require.NoError(t, j.Start(base.Add(time.Minute), 292))
	j.SetFeatureProgress(domain.FeatureQRCode, domain.FeatureProgress{Status: domain.FeatureCompleted, Progress: 100})
	require.NoError(t, s.Save(ctx, j))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGenerating, got.Status)
	assert.Equal(t, []domain.FeatureID{domain.FeatureQRCode, domain.FeaturePodcast}, got.SelectedFeatures)
	assert.Equal(t, domain.FeatureCompleted, got.FeatureTracking[domain.FeatureQRCode].Status)
	assert.Equal(t, 180, got.FeatureTracking[domain.FeaturePodcast].EstimatedTimeRemaining)
	assert.Equal(t, 292, got.EstimatedTime)
	assert.Equal(t, map[string]string{"language": "pt"}, got.Options)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(base.Add(time.Minute)))
	assert.Nil(t, got.RecoveryInfo)
	assert.Nil(t, got.CompletedAt)

	got.Fail(base.Add(2*time.Minute), domain.JobError{Code: "NETWORK_ERROR", Message: "connection reset"}, domain.RecoveryInfo{IsNetworkError: true, Retryable: true, RecommendedRetryDelay: 120})
	require.NoError(t, s.Save(ctx, got))
	failed, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, failed.RecoveryInfo)
	assert.True(t, failed.RecoveryInfo.IsNetworkError)
	assert.Equal(t, "NETWORK_ERROR", failed.Error.Code)
	assert.Equal(t, domain.FeatureFailed, failed.FeatureTracking[domain.FeaturePodcast].Status)

	n, err := s.CountPendingBefore(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := s.ListByStatus(ctx, domain.StatusFailed, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "job-1", list[0].ID)
	list, err = s.ListByStatus(ctx, domain.StatusFailed, base)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.GetParsedData(ctx, "job-1")
	assert.ErrorIs(t, err, domain.ErrResumeNotFound)
	require.NoError(t, s.SaveParsedData(ctx, "job-1", map[string]interface{}{"summary": "first"}))
	require.NoError(t, s.SaveParsedData(ctx, "job-1", map[string]interface{}{"summary": "second"}))
	data, err := s.GetParsedData(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "second", data["summary"])
}

func TestGormStore(t *testing.T) {
	storeContract(t, setupGormStore(t))
}

func TestOpenGorm_UnknownDriver(t *testing.T) {
	_, err := OpenGorm("oracle", "")
	assert.Error(t, err)
}
