package repository

import (
	"context"
	"encoding/json"

	"cv-generator/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// queryJSON runs a SQL that returns a single json value and unmarshals it.
func queryJSON(ctx context.Context, pool *pgxpool.Pool, sql string, args ...interface{}) (map[string]interface{}, error) {
	var raw []byte
	if err := pool.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnrichmentReader collects analysis documents produced by other services.
// It is best-effort: missing tables or rows are skipped and whatever could be
// fetched is returned.
type EnrichmentReader struct {
	pool *pgxpool.Pool
}

func NewEnrichmentReader(pool *pgxpool.Pool) *EnrichmentReader {
	return &EnrichmentReader{pool: pool}
}

func (r *EnrichmentReader) Get(ctx context.Context, jobID, userID string) (domain.Enrichment, error) {
	var e domain.Enrichment
	if r.pool == nil {
		return e, nil
	}
	if v, err := queryJSON(ctx, r.pool, `SELECT a.result FROM ats_analyses a WHERE a.job_id = $1 ORDER BY a.created_at DESC LIMIT 1`, jobID); err == nil {
		e.ATS = v
	}
	if v, err := queryJSON(ctx, r.pool, `SELECT p.profile FROM personality_profiles p WHERE p.user_id = $1 ORDER BY p.created_at DESC LIMIT 1`, userID); err == nil {
		e.Personality = v
	}
	return e, nil
}
