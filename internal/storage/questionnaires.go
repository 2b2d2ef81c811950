package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// StoreQuestionnaire replaces the job's questionnaire wholesale.
// Questionnaires are immutable once generated; regeneration swaps the whole
// document.
func (db *DB) StoreQuestionnaire(ctx context.Context, q *Questionnaire) error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("storage: questionnaire for job %s has no questions", q.JobID)
	}
	if q.ID == "" {
		q.ID = fmt.Sprintf("%s_%d", q.JobID, time.Now().Unix())
	}
	payload, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	query := `INSERT INTO job_questionnaires (id, job_id, questionnaire, created_at)
              VALUES ($1, $2, $3, NOW())
              ON CONFLICT (job_id) DO UPDATE
                SET id            = EXCLUDED.id,
                    questionnaire = EXCLUDED.questionnaire,
                    created_at    = NOW()`
	return db.withRetry(ctx, func(ctx context.Context) error {
		_, err := db.connection.ExecContext(ctx, query, q.ID, q.JobID, string(payload))
		return err
	})
}

// FetchQuestionnaire returns the weighted questionnaire for a job.
func (db *DB) FetchQuestionnaire(ctx context.Context, jobID string) (*Questionnaire, error) {
	query := `SELECT id, job_id, questionnaire, created_at FROM job_questionnaires WHERE job_id = $1`
	q := &Questionnaire{}
	var payload []byte
	err := db.connection.QueryRowContext(ctx, query, jobID).
		Scan(&q.ID, &q.JobID, &payload, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &q.Questions); err != nil {
		return nil, fmt.Errorf("storage: corrupt questionnaire for job %s: %w", jobID, err)
	}
	return q, nil
}

// JobsWithoutQuestionnaire lists job ids that have applications but no
// stored questionnaire. Feeds the questionnaire backfill job.
func (db *DB) JobsWithoutQuestionnaire(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT a.job_id FROM applications a
	          LEFT JOIN job_questionnaires q ON q.job_id = a.job_id
	          WHERE q.job_id IS NULL
	          ORDER BY a.job_id`
	rows, err := db.connection.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}
