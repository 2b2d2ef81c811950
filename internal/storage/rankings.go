package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrMissingExplanation marks a ranking result that arrived without a
// usable explanation. The record is not persisted; the previously stored
// ranking for the pair stays untouched.
var ErrMissingExplanation = errors.New("storage: ranking explanation is empty, refusing to persist")

// StoreRanking upserts the canonical ranking record for a (job, email)
// pair. Score is a 0-1 fraction. A blank explanation is an incomplete
// computation: it is logged and refused, never written as canonical.
// Concurrent writes converge last-write-wins by ranked_at.
func (db *DB) StoreRanking(ctx context.Context, jobID, email string, score float64, explanation string) error {
	if strings.TrimSpace(explanation) == "" {
		db.log.Warn("ranking without explanation, skipping store",
			zap.String("job_id", jobID),
			zap.String("candidate_email", email),
			zap.Float64("ranking", score))
		return ErrMissingExplanation
	}
	query := `INSERT INTO rankings (id, job_id, candidate_email, ranking, explanation, ranked_at)
              VALUES ($1, $2, $3, $4, $5, $6)
              ON CONFLICT (job_id, candidate_email) DO UPDATE
                SET ranking     = EXCLUDED.ranking,
                    explanation = EXCLUDED.explanation,
                    ranked_at   = EXCLUDED.ranked_at
                WHERE EXCLUDED.ranked_at >= rankings.ranked_at`
	return db.withRetry(ctx, func(ctx context.Context) error {
		_, err := db.connection.ExecContext(ctx, query,
			ApplicationID(jobID, email), jobID, email, score, explanation, time.Now().UTC())
		return err
	})
}

// FetchRanking returns the canonical ranking for one pair.
func (db *DB) FetchRanking(ctx context.Context, jobID, email string) (*Ranking, error) {
	query := `SELECT id, job_id, candidate_email, ranking, explanation, ranked_at
	          FROM rankings WHERE job_id = $1 AND candidate_email = $2`
	r := &Ranking{}
	err := db.connection.QueryRowContext(ctx, query, jobID, email).
		Scan(&r.ID, &r.JobID, &r.Email, &r.Score, &r.Explanation, &r.RankedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// FetchRankings returns every ranking for a job keyed by candidate email.
// Used to reconcile the applications' denormalized score copies.
func (db *DB) FetchRankings(ctx context.Context, jobID string) (map[string]*Ranking, error) {
	query := `SELECT id, job_id, candidate_email, ranking, explanation, ranked_at
	          FROM rankings WHERE job_id = $1`
	rows, err := db.connection.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[string]*Ranking)
	for rows.Next() {
		r := &Ranking{}
		if err := rows.Scan(&r.ID, &r.JobID, &r.Email, &r.Score, &r.Explanation, &r.RankedAt); err != nil {
			return nil, err
		}
		res[r.Email] = r
	}
	return res, rows.Err()
}
