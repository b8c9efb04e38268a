package usecase

import (
	"context"
	"time"

	"cv-generator/internal/domain"
)

type StepView struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type ResultsView struct {
	Files    domain.GeneratedFiles `json:"files"`
	Features []string              `json:"features"`
	Warnings []string              `json:"warnings,omitempty"`
}

type TimingView struct {
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	DurationSeconds int        `json:"durationSeconds"`
	EstimatedTime   int        `json:"estimatedTime"`
}

type ErrorView struct {
	Code                  string `json:"code"`
	Message               string `json:"message"`
	Recoverable           bool   `json:"recoverable"`
	RetryCount            int    `json:"retryCount"`
	RecommendedRetryDelay int    `json:"recommendedRetryDelay"`
}

// StatusView is the status payload. Which fields are set depends on Status.
type StatusView struct {
	JobID  string           `json:"jobId"`
	Status domain.JobStatus `json:"status"`

	QueuePosition     int `json:"queuePosition,omitempty"`
	EstimatedWaitTime int `json:"estimatedWaitTime,omitempty"`

	CurrentStep             string                                      `json:"currentStep,omitempty"`
	Steps                   []StepView                                  `json:"steps,omitempty"`
	Progress                int                                         `json:"progress,omitempty"`
	EstimatedCompletionTime *time.Time                                  `json:"estimatedCompletionTime,omitempty"`
	FeatureTracking         map[domain.FeatureID]domain.FeatureProgress `json:"featureTracking,omitempty"`

	Results *ResultsView `json:"results,omitempty"`
	Timing  *TimingView  `json:"timing,omitempty"`

	Error *ErrorView `json:"error,omitempty"`
}

// Status returns the caller's view of a job.
func (o *Orchestrator) Status(ctx context.Context, jobID, userID string) (*StatusView, error) {
	job, err := o.load(ctx, jobID, userID, "orchestrator.status")
	if err != nil {
		return nil, err
	}

	v := &StatusView{JobID: job.ID, Status: job.Status}
	switch job.Status {
	case domain.StatusPending:
		ahead, err := o.jobs.CountPendingBefore(ctx, job.CreatedAt)
		if err != nil {
			return nil, domain.E(domain.KindTransient, "orchestrator.status", err)
		}
		v.QueuePosition = ahead + 1
		v.EstimatedWaitTime = ahead * MinimumEstimate

	case domain.StatusGenerating:
		v.CurrentStep = job.CurrentStep
		v.Steps = steps(job.CurrentStep)
		v.Progress = job.Progress()
		v.EstimatedCompletionTime = job.EstimatedCompletionTime
		v.FeatureTracking = job.FeatureTracking

	case domain.StatusCompleted:
		var done []string
		for _, f := range job.SelectedFeatures {
			if job.FeatureTracking[f].Status == domain.FeatureCompleted {
				done = append(done, string(f))
			}
		}
		v.Results = &ResultsView{Files: job.GeneratedFiles, Features: done, Warnings: job.Warnings}
		v.Timing = timing(job)
		v.FeatureTracking = job.FeatureTracking

	case domain.StatusFailed:
		ev := &ErrorView{Code: "UNKNOWN_GENERATION_ERROR", RetryCount: job.RetryCount}
		if job.Error != nil {
			ev.Code = job.Error.Code
			ev.Message = job.Error.Message
		}
		if job.RecoveryInfo != nil {
			ev.Recoverable = job.RecoveryInfo.Retryable && job.RetryCount < o.maxRetries
			ev.RecommendedRetryDelay = job.RecoveryInfo.RecommendedRetryDelay
		}
		v.Error = ev
		v.Timing = timing(job)
		v.FeatureTracking = job.FeatureTracking
	}
	return v, nil
}

func steps(current string) []StepView {
	idx := -1
	for i, s := range domain.PipelineSteps {
		if s == current {
			idx = i
		}
	}
	out := make([]StepView, len(domain.PipelineSteps))
	for i, s := range domain.PipelineSteps {
		status := "pending"
		switch {
		case i < idx:
			status = "completed"
		case i == idx:
			status = "active"
		}
		out[i] = StepView{Name: s, Status: status}
	}
	return out
}

func timing(job *domain.Job) *TimingView {
	t := &TimingView{StartedAt: job.StartedAt, CompletedAt: job.CompletedAt, EstimatedTime: job.EstimatedTime}
	if job.StartedAt != nil && job.CompletedAt != nil {
		t.DurationSeconds = int(job.CompletedAt.Sub(*job.StartedAt).Round(time.Second) / time.Second)
	}
	return t
}
