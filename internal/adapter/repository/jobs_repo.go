package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cv-generator/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresStore keeps jobs in cv_jobs and parsed résumés in parsed_cvs.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const jobColumns = `id, user_id, status, selected_template, selected_features, feature_tracking,
	current_step, estimated_time, estimated_completion_time, generated_files, warnings,
	recovery_info, error, retry_count, started_at, completed_at, created_at, updated_at, options`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var (
		j                                          domain.Job
		status                                     string
		features, tracking, files, warns, rec, jer, opts []byte
	)
	err := row.Scan(&j.ID, &j.UserID, &status, &j.SelectedTemplate, &features, &tracking,
		&j.CurrentStep, &j.EstimatedTime, &j.EstimatedCompletionTime, &files, &warns,
		&rec, &jer, &j.RetryCount, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt, &opts)
	if err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	for _, f := range []struct {
		raw []byte
		dst interface{}
	}{
		{features, &j.SelectedFeatures},
		{tracking, &j.FeatureTracking},
		{files, &j.GeneratedFiles},
		{warns, &j.Warnings},
		{rec, &j.RecoveryInfo},
		{jer, &j.Error},
		{opts, &j.Options},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", j.ID, err)
		}
	}
	return &j, nil
}

func (r *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM cv_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	return j, err
}

// Save upserts the whole record.
func (r *PostgresStore) Save(ctx context.Context, j *domain.Job) error {
	args, err := jobArgs(j)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO cv_jobs (`+jobColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, status = EXCLUDED.status,
			selected_template = EXCLUDED.selected_template, selected_features = EXCLUDED.selected_features,
			feature_tracking = EXCLUDED.feature_tracking, current_step = EXCLUDED.current_step,
			estimated_time = EXCLUDED.estimated_time, estimated_completion_time = EXCLUDED.estimated_completion_time,
			generated_files = EXCLUDED.generated_files, warnings = EXCLUDED.warnings,
			recovery_info = EXCLUDED.recovery_info, error = EXCLUDED.error, retry_count = EXCLUDED.retry_count,
			started_at = EXCLUDED.started_at, completed_at = EXCLUDED.completed_at, updated_at = EXCLUDED.updated_at,
			options = EXCLUDED.options`,
		args...)
	return err
}

func jobArgs(j *domain.Job) ([]interface{}, error) {
	var out [7][]byte
	for i, v := range []interface{}{j.SelectedFeatures, j.FeatureTracking, j.GeneratedFiles, j.Warnings, j.RecoveryInfo, j.Error, j.Options} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode job %s: %w", j.ID, err)
		}
		out[i] = b
	}
	return []interface{}{
		j.ID, j.UserID, string(j.Status), j.SelectedTemplate, out[0], out[1],
		j.CurrentStep, j.EstimatedTime, j.EstimatedCompletionTime, out[2], out[3],
		out[4], out[5], j.RetryCount, j.StartedAt, j.CompletedAt, j.CreatedAt, j.UpdatedAt, out[6],
	}, nil
}

func (r *PostgresStore) CountPendingBefore(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM cv_jobs WHERE status = $1 AND created_at < $2`,
		string(domain.StatusPending), t).Scan(&n)
	return n, err
}

func (r *PostgresStore) ListByStatus(ctx context.Context, status domain.JobStatus, before time.Time) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM cv_jobs WHERE status = $1 AND updated_at < $2 ORDER BY updated_at`,
		string(status), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *PostgresStore) GetParsedData(ctx context.Context, jobID string) (map[string]interface{}, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM parsed_cvs WHERE job_id = $1`, jobID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrResumeNotFound
	}
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode parsed resume %s: %w", jobID, err)
	}
	return out, nil
}

// SaveParsedData stores the parser's output for a job.
func (r *PostgresStore) SaveParsedData(ctx context.Context, jobID string, data map[string]interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO parsed_cvs (job_id, data, created_at) VALUES ($1, $2, now())
		ON CONFLICT (job_id) DO UPDATE SET data = EXCLUDED.data`, jobID, b)
	return err
}
