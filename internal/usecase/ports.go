package usecase

import (
	"context"
	"time"

	"cv-generator/internal/domain"
	"cv-generator/internal/feature"
	"cv-generator/internal/filemanager"
	"cv-generator/internal/render"
)

// JobStore persists job records. Save writes the whole record; concurrent
// writers are last-writer-wins.
type JobStore interface {
	Get(ctx context.Context, id string) (*domain.Job, error)
	Save(ctx context.Context, job *domain.Job) error
	// CountPendingBefore counts pending jobs created before t.
	CountPendingBefore(ctx context.Context, t time.Time) (int, error)
	// ListByStatus returns jobs in status whose last update is before t.
	ListByStatus(ctx context.Context, status domain.JobStatus, before time.Time) ([]*domain.Job, error)
}

// ResumeSource loads the parsed résumé attached to a job.
type ResumeSource interface {
	GetParsedData(ctx context.Context, jobID string) (map[string]interface{}, error)
}

// EnrichmentSource loads optional analysis documents for a job.
type EnrichmentSource interface {
	Get(ctx context.Context, jobID, userID string) (domain.Enrichment, error)
}

// Task is one unit of background generation work.
type Task struct {
	ID         string             `json:"id"`
	JobID      string             `json:"jobId"`
	UserID     string             `json:"userId"`
	TemplateID string             `json:"templateId"`
	Features   []domain.FeatureID `json:"features"`
	Options    map[string]string  `json:"options,omitempty"`
	Attempt    int                `json:"attempt"`
	EnqueuedAt time.Time          `json:"enqueuedAt"`
}

// Dispatcher hands tasks to whatever executes them.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Task) error
	// Cancel stops an in-flight task for jobID, reporting whether one was found.
	Cancel(jobID string) bool
}

// StatusNotifier publishes job updates to subscribers. Failures are logged by
// callers and never affect the job.
type StatusNotifier interface {
	Notify(ctx context.Context, job *domain.Job) error
}

type FeatureRunner interface {
	GenerateFeatures(ctx context.Context, in feature.Input, ids []domain.FeatureID, obs feature.Observer) (*feature.Result, error)
}

type TemplateSource interface {
	Resolve(id string) string
	Get(id string) render.Renderer
}

type FilePersister interface {
	Persist(ctx context.Context, jobID, userID, html string) (filemanager.Files, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, *domain.Job) error { return nil }

type nopEnrichment struct{}

func (nopEnrichment) Get(context.Context, string, string) (domain.Enrichment, error) {
	return domain.Enrichment{}, nil
}
