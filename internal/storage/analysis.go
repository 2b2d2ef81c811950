package storage

import (
	"context"
	"database/sql"
	"time"
)

// UpsertAnalysis stores a GitHub profile analysis keyed by
// (candidate email, profile identifier). A newer analysis supersedes the
// previous one; results are never merged.
func (db *DB) UpsertAnalysis(ctx context.Context, entry *AnalysisEntry) error {
	if entry.ID == "" {
		entry.ID = AnalysisID(entry.Email, entry.ExternalID)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO github_analysis (id, candidate_email, github_identifier, result, created_at)
              VALUES ($1, $2, $3, $4, $5)
              ON CONFLICT (candidate_email, github_identifier) DO UPDATE
                SET result     = EXCLUDED.result,
                    created_at = EXCLUDED.created_at`
	return db.withRetry(ctx, func(ctx context.Context) error {
		_, err := db.connection.ExecContext(ctx, query,
			entry.ID, entry.Email, entry.ExternalID, nullableJSON(entry.Result), entry.CreatedAt)
		return err
	})
}

// FetchAnalysis returns the cached analysis for a candidate/identifier
// pair, or ErrNotFound.
func (db *DB) FetchAnalysis(ctx context.Context, email, externalID string) (*AnalysisEntry, error) {
	query := `SELECT id, candidate_email, github_identifier, result, created_at
	          FROM github_analysis WHERE candidate_email = $1 AND github_identifier = $2`
	entry := &AnalysisEntry{}
	var result sql.NullString
	err := db.connection.QueryRowContext(ctx, query, email, externalID).
		Scan(&entry.ID, &entry.Email, &entry.ExternalID, &result, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if result.Valid {
		entry.Result = []byte(result.String)
	}
	return entry, nil
}

// EmailsWithAnalysis lists distinct candidate emails that have at least one
// stored analysis.
func (db *DB) EmailsWithAnalysis(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT candidate_email FROM github_analysis ORDER BY candidate_email`
	rows, err := db.connection.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		res = append(res, email)
	}
	return res, rows.Err()
}
