package domain

import (
	"time"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusGenerating JobStatus = "generating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
	StatusExpired    JobStatus = "expired"
)

// Terminal reports whether no worker may write to a job in this status.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

var transitions = map[JobStatus][]JobStatus{
	StatusPending:    {StatusGenerating, StatusCancelled, StatusExpired},
	StatusGenerating: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:     {StatusGenerating},
}

// CanTransition reports whether a job may move from one status to another.
// failed -> generating is only legal through the retry flow.
func CanTransition(from, to JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type FeatureStatus string

const (
	FeaturePending    FeatureStatus = "pending"
	FeatureProcessing FeatureStatus = "processing"
	FeatureCompleted  FeatureStatus = "completed"
	FeatureFailed     FeatureStatus = "failed"
)

type FeatureProgress struct {
	Status                 FeatureStatus `json:"status"`
	Progress               int           `json:"progress"`
	EstimatedTimeRemaining int           `json:"estimatedTimeRemaining"`
	Error                  string        `json:"error,omitempty"`
}

type GeneratedFiles struct {
	HTMLURL string `json:"htmlUrl,omitempty"`
	PDFURL  string `json:"pdfUrl,omitempty"`
	DOCXURL string `json:"docxUrl,omitempty"`
}

const DefaultMaxRetries = 3

type RecoveryInfo struct {
	IsTimeout             bool `json:"isTimeout"`
	IsNetworkError        bool `json:"isNetworkError"`
	IsQuotaError          bool `json:"isQuotaError"`
	Retryable             bool `json:"retryable"`
	RecommendedRetryDelay int  `json:"recommendedRetryDelay"`
	RetryCount            int  `json:"retryCount"`
	MaxRetries            int  `json:"maxRetries"`
}

type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Pipeline steps recorded in Job.CurrentStep.
const (
	StepQueued     = "queued"
	StepFeatures   = "features"
	StepRendering  = "rendering"
	StepPersisting = "persisting"
	StepDone       = "done"
)

var PipelineSteps = []string{StepQueued, StepFeatures, StepRendering, StepPersisting, StepDone}

type Job struct {
	ID                      string                        `json:"id"`
	UserID                  string                        `json:"userId"`
	Status                  JobStatus                     `json:"status"`
	SelectedTemplate        string                        `json:"selectedTemplate"`
	SelectedFeatures        []FeatureID                   `json:"selectedFeatures"`
	Options                 map[string]string             `json:"options,omitempty"`
	FeatureTracking         map[FeatureID]FeatureProgress `json:"featureTracking"`
	CurrentStep             string                        `json:"currentStep,omitempty"`
	EstimatedTime           int                           `json:"estimatedTime"`
	EstimatedCompletionTime *time.Time                    `json:"estimatedCompletionTime,omitempty"`
	GeneratedFiles          GeneratedFiles                `json:"generatedFiles"`
	Warnings                []string                      `json:"warnings,omitempty"`
	RecoveryInfo            *RecoveryInfo                 `json:"recoveryInfo,omitempty"`
	Error                   *JobError                     `json:"error,omitempty"`
	RetryCount              int                           `json:"retryCount"`
	StartedAt               *time.Time                    `json:"startedAt,omitempty"`
	CompletedAt             *time.Time                    `json:"completedAt,omitempty"`
	CreatedAt               time.Time                     `json:"createdAt"`
	UpdatedAt               time.Time                     `json:"updatedAt"`
}

// Touch advances UpdatedAt without ever moving it backwards.
func (j *Job) Touch(now time.Time) {
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = j.UpdatedAt
	}
}

// InitTracking replaces the tracking map with one pending entry per feature.
// It is the only place the key set is established.
func (j *Job) InitTracking(features []FeatureID) {
	j.SelectedFeatures = append([]FeatureID(nil), features...)
	j.FeatureTracking = make(map[FeatureID]FeatureProgress, len(features))
	for _, f := range features {
		j.FeatureTracking[f] = FeatureProgress{
			Status:                 FeaturePending,
			EstimatedTimeRemaining: f.Estimate(),
		}
	}
}

// SetFeatureProgress updates an existing tracking entry. Unknown keys are
// ignored so the key set never grows after initiation.
func (j *Job) SetFeatureProgress(f FeatureID, p FeatureProgress) bool {
	if _, ok := j.FeatureTracking[f]; !ok {
		return false
	}
	j.FeatureTracking[f] = p
	return true
}

// FailOpenFeatures marks every pending or processing feature as failed.
func (j *Job) FailOpenFeatures(msg string) {
	for f, p := range j.FeatureTracking {
		if p.Status == FeaturePending || p.Status == FeatureProcessing {
			p.Status = FeatureFailed
			p.Error = msg
			p.EstimatedTimeRemaining = 0
			j.FeatureTracking[f] = p
		}
	}
}

// Progress is the mean progress over tracked features.
func (j *Job) Progress() int {
	if len(j.FeatureTracking) == 0 {
		if j.Status == StatusCompleted {
			return 100
		}
		return 0
	}
	total := 0
	for _, p := range j.FeatureTracking {
		if p.Status == FeatureCompleted || p.Status == FeatureFailed {
			total += 100
			continue
		}
		total += p.Progress
	}
	return total / len(j.FeatureTracking)
}

// Start moves the job into generating.
func (j *Job) Start(now time.Time, estimate int) error {
	if !CanTransition(j.Status, StatusGenerating) {
		return &Error{Kind: KindValidation, Op: "job.start", Err: ErrInvalidTransition}
	}
	j.Status = StatusGenerating
	j.CurrentStep = StepQueued
	j.EstimatedTime = estimate
	eta := now.Add(time.Duration(estimate) * time.Second)
	j.EstimatedCompletionTime = &eta
	j.StartedAt = &now
	j.CompletedAt = nil
	j.GeneratedFiles = GeneratedFiles{}
	j.Warnings = nil
	j.RecoveryInfo = nil
	j.Error = nil
	j.Touch(now)
	return nil
}

// Complete records a successful generation. An empty HTML URL is refused.
func (j *Job) Complete(now time.Time, files GeneratedFiles, warnings []string) error {
	if files.HTMLURL == "" {
		return &Error{Kind: KindUnknown, Op: "job.complete", Err: ErrMissingHTML}
	}
	if !CanTransition(j.Status, StatusCompleted) {
		return &Error{Kind: KindValidation, Op: "job.complete", Err: ErrInvalidTransition}
	}
	j.Status = StatusCompleted
	j.CurrentStep = StepDone
	j.GeneratedFiles = files
	j.Warnings = warnings
	j.RecoveryInfo = nil
	j.Error = nil
	j.CompletedAt = &now
	j.Touch(now)
	return nil
}

// Fail records a failed generation. Recovery info is always attached.
func (j *Job) Fail(now time.Time, jerr JobError, info RecoveryInfo) {
	j.FailOpenFeatures(jerr.Message)
	info.RetryCount = j.RetryCount
	if info.MaxRetries == 0 {
		info.MaxRetries = DefaultMaxRetries
	}
	j.Status = StatusFailed
	j.Error = &jerr
	j.RecoveryInfo = &info
	j.CompletedAt = &now
	j.Touch(now)
}
