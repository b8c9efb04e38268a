package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cv-generator/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type jobRecord struct {
	ID                      string `gorm:"primaryKey;size:64"`
	UserID                  string `gorm:"size:64;index"`
	Status                  string `gorm:"size:32;index:idx_cv_jobs_status_updated"`
	SelectedTemplate        string `gorm:"size:64"`
	SelectedFeatures        datatypes.JSON
	FeatureTracking         datatypes.JSON
	Options                 datatypes.JSON
	CurrentStep             string `gorm:"size:32"`
	EstimatedTime           int
	EstimatedCompletionTime *time.Time
	GeneratedFiles          datatypes.JSON
	Warnings                datatypes.JSON
	RecoveryInfo            datatypes.JSON
	Error                   datatypes.JSON
	RetryCount              int
	StartedAt               *time.Time
	CompletedAt             *time.Time
	CreatedAt               time.Time `gorm:"autoCreateTime:false;index"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime:false;index:idx_cv_jobs_status_updated"`
}

func (jobRecord) TableName() string { return "cv_jobs" }

type parsedRecord struct {
	JobID     string `gorm:"primaryKey;size:64"`
	Data      datatypes.JSON
	CreatedAt time.Time
}

func (parsedRecord) TableName() string { return "parsed_cvs" }

// OpenGorm opens a sqlite or mysql database.
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch driver {
	case "sqlite", "":
		dial = sqlite.Open(dsn)
	case "mysql":
		dial = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}
	return gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// GormStore implements the job store and résumé source on gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the necessary tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&jobRecord{}, &parsedRecord{})
}

func toRecord(j *domain.Job) (*jobRecord, error) {
	r := &jobRecord{
		ID:                      j.ID,
		UserID:                  j.UserID,
		Status:                  string(j.Status),
		SelectedTemplate:        j.SelectedTemplate,
		CurrentStep:             j.CurrentStep,
		EstimatedTime:           j.EstimatedTime,
		EstimatedCompletionTime: j.EstimatedCompletionTime,
		RetryCount:              j.RetryCount,
		StartedAt:               j.StartedAt,
		CompletedAt:             j.CompletedAt,
		CreatedAt:               j.CreatedAt,
		UpdatedAt:               j.UpdatedAt,
	}
	for _, f := range []struct {
		src interface{}
		dst *datatypes.JSON
	}{
		{j.SelectedFeatures, &r.SelectedFeatures},
		{j.FeatureTracking, &r.FeatureTracking},
		{j.Options, &r.Options},
		{j.GeneratedFiles, &r.GeneratedFiles},
		{j.Warnings, &r.Warnings},
		{j.RecoveryInfo, &r.RecoveryInfo},
		{j.Error, &r.Error},
	} {
		b, err := json.Marshal(f.src)
		if err != nil {
			return nil, fmt.Errorf("encode job %s: %w", j.ID, err)
		}
		*f.dst = datatypes.JSON(b)
	}
	return r, nil
}

func (r *jobRecord) toJob() (*domain.Job, error) {
	j := &domain.Job{
		ID:                      r.ID,
		UserID:                  r.UserID,
		Status:                  domain.JobStatus(r.Status),
		SelectedTemplate:        r.SelectedTemplate,
		CurrentStep:             r.CurrentStep,
		EstimatedTime:           r.EstimatedTime,
		EstimatedCompletionTime: r.EstimatedCompletionTime,
		RetryCount:              r.RetryCount,
		StartedAt:               r.StartedAt,
		CompletedAt:             r.CompletedAt,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
	for _, f := range []struct {
		raw datatypes.JSON
		dst interface{}
	}{
		{r.SelectedFeatures, &j.SelectedFeatures},
		{r.FeatureTracking, &j.FeatureTracking},
		{r.Options, &j.Options},
		{r.GeneratedFiles, &j.GeneratedFiles},
		{r.Warnings, &j.Warnings},
		{r.RecoveryInfo, &j.RecoveryInfo},
		{r.Error, &j.Error},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", r.ID, err)
		}
	}
	return j, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toJob()
}

func (s *GormStore) Save(ctx context.Context, j *domain.Job) error {
	rec, err := toRecord(j)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
}

func (s *GormStore) CountPendingBefore(ctx context.Context, t time.Time) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&jobRecord{}).
		Where("status = ? AND created_at < ?", string(domain.StatusPending), t).
		Count(&n).Error
	return int(n), err
}

func (s *GormStore) ListByStatus(ctx context.Context, status domain.JobStatus, before time.Time) ([]*domain.Job, error) {
	var recs []jobRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(status), before).
		Order("updated_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Job, 0, len(recs))
	for i := range recs {
		j, err := recs[i].toJob()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *GormStore) GetParsedData(ctx context.Context, jobID string) (map[string]interface{}, error) {
	var rec parsedRecord
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrResumeNotFound
	}
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Data, &out); err != nil {
		return nil, fmt.Errorf("decode parsed resume %s: %w", jobID, err)
	}
	return out, nil
}

func (s *GormStore) SaveParsedData(ctx context.Context, jobID string, data map[string]interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	rec := parsedRecord{JobID: jobID, Data: datatypes.JSON(b), CreatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "job_id"}}, DoUpdates: clause.AssignmentColumns([]string{"data"})}).
		Create(&rec).Error
}
