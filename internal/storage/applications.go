package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const applicationColumns = `id, job_id, email, candidate_id, status, resume, resume_text, resume_blob_name, ranking, explanation, applied_at, updated_at`

// UpsertApplication writes an application document keyed by (job_id, email).
// The upsert is idempotent: concurrent submissions for the same pair
// converge on one record. A resubmission never touches the ranking and
// explanation columns; that cached copy is owned by the ranking path.
func (db *DB) UpsertApplication(ctx context.Context, app *Application) error {
	if app.ID == "" {
		app.ID = ApplicationID(app.JobID, app.Email)
	}
	if app.Status == "" {
		app.Status = StatusApplied
	}
	query := `INSERT INTO applications (id, job_id, email, candidate_id, status, resume, resume_text, resume_blob_name, ranking, explanation, applied_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE(NULLIF($11, '0001-01-01T00:00:00Z'::timestamptz), NOW()), NOW())
              ON CONFLICT (job_id, email) DO UPDATE
                SET candidate_id     = EXCLUDED.candidate_id,
                    status           = EXCLUDED.status,
                    resume           = EXCLUDED.resume,
                    resume_text      = EXCLUDED.resume_text,
                    resume_blob_name = EXCLUDED.resume_blob_name,
                    updated_at       = NOW()`
	return db.withRetry(ctx, func(ctx context.Context) error {
		_, err := db.connection.ExecContext(ctx, query,
			app.ID,
			app.JobID,
			app.Email,
			app.CandidateID,
			string(app.Status),
			nullableJSON(app.Resume),
			app.ResumeText,
			app.ResumeBlobName,
			app.RankingScore,
			app.Explanation,
			app.AppliedAt,
		)
		return err
	})
}

// GetApplication fetches one application by (job_id, email).
func (db *DB) GetApplication(ctx context.Context, jobID, email string) (*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE job_id = $1 AND email = $2`
	row := db.connection.QueryRowContext(ctx, query, jobID, email)
	return scanApplication(row)
}

// ApplicationsByEmail returns every application document for one contact
// email, across all job partitions.
func (db *DB) ApplicationsByEmail(ctx context.Context, email string) ([]*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE email = $1 ORDER BY applied_at`
	return db.queryApplications(ctx, query, email)
}

// ApplicationsByJob returns all applications within one job partition.
func (db *DB) ApplicationsByJob(ctx context.Context, jobID string) ([]*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE job_id = $1 ORDER BY applied_at`
	return db.queryApplications(ctx, query, jobID)
}

// AllApplications is the cross-partition scan used by reconciliation jobs.
func (db *DB) AllApplications(ctx context.Context) ([]*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications ORDER BY applied_at, id`
	return db.queryApplications(ctx, query)
}

// UpdateCandidateID rewrites the canonical candidate id on one document.
func (db *DB) UpdateCandidateID(ctx context.Context, id, candidateID string) error {
	query := `UPDATE applications SET candidate_id = $1, updated_at = NOW() WHERE id = $2`
	return db.withRetry(ctx, func(ctx context.Context) error {
		res, err := db.connection.ExecContext(ctx, query, candidateID, id)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// UpdateApplicationScore refreshes the denormalized score copy from the
// authoritative ranking record.
func (db *DB) UpdateApplicationScore(ctx context.Context, jobID, email string, score float64, explanation string) error {
	query := `UPDATE applications SET ranking = $1, explanation = $2, updated_at = NOW() WHERE job_id = $3 AND email = $4`
	return db.withRetry(ctx, func(ctx context.Context) error {
		res, err := db.connection.ExecContext(ctx, query, score, explanation, jobID, email)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// UpdateStatus sets the lifecycle status for a candidate's application.
// Unrecognized input is stored as Unknown rather than rejected.
func (db *DB) UpdateStatus(ctx context.Context, jobID, candidateID, status string) (Status, error) {
	normalized := ParseStatus(status)
	if normalized == StatusUnknown {
		db.log.Warn("unrecognized application status",
			zap.String("job_id", jobID),
			zap.String("candidate_id", candidateID),
			zap.String("status", status))
	}
	query := `UPDATE applications SET status = $1, updated_at = NOW() WHERE job_id = $2 AND candidate_id = $3`
	err := db.withRetry(ctx, func(ctx context.Context) error {
		res, err := db.connection.ExecContext(ctx, query, string(normalized), jobID, candidateID)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
	return normalized, err
}

// DeleteApplication removes one application document. Used only by the
// explicit cleanup step, never by detection.
func (db *DB) DeleteApplication(ctx context.Context, id string) error {
	query := `DELETE FROM applications WHERE id = $1`
	_, err := db.connection.ExecContext(ctx, query, id)
	return err
}

// ApplicationFilter narrows SearchApplications. Zero values are ignored.
type ApplicationFilter struct {
	JobID       string
	Email       string
	CandidateID string
	Status      Status
	OrderBy     string // must pass ValidateFieldName
	Limit       int
}

// SearchApplications runs a typed, fully parameterized filter query.
func (db *DB) SearchApplications(ctx context.Context, filter *ApplicationFilter) ([]*Application, error) {
	base := `SELECT ` + applicationColumns + ` FROM applications`
	var where []string
	var args []interface{}
	i := 1

	if filter == nil {
		filter = &ApplicationFilter{}
	}

	if filter.JobID != "" {
		where = append(where, fmt.Sprintf("job_id = $%d", i))
		args = append(args, filter.JobID)
		i++
	}
	if filter.Email != "" {
		where = append(where, fmt.Sprintf("email = $%d", i))
		args = append(args, filter.Email)
		i++
	}
	if filter.CandidateID != "" {
		where = append(where, fmt.Sprintf("candidate_id = $%d", i))
		args = append(args, filter.CandidateID)
		i++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", i))
		args = append(args, string(filter.Status))
		i++
	}

	if len(where) > 0 {
		base += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.OrderBy != "" {
		col, err := ValidateFieldName(filter.OrderBy)
		if err != nil {
			return nil, err
		}
		base += " ORDER BY " + col
	}
	if filter.Limit > 0 {
		base += fmt.Sprintf(" LIMIT $%d", i)
		args = append(args, filter.Limit)
	}

	return db.queryApplications(ctx, base, args...)
}

// TopCandidates returns ranked candidates for a job, best first.
// Applications without a resume artifact reference are incomplete
// submissions and are excluded. The authoritative ranking record overrides
// the denormalized copy when both exist.
func (db *DB) TopCandidates(ctx context.Context, jobID string, limit int) ([]*Application, error) {
	query := `SELECT ` + prefixColumns("a.", applicationColumns) + `,
	                 r.ranking, r.explanation
	          FROM applications a
	          LEFT JOIN rankings r ON r.job_id = a.job_id AND r.candidate_email = a.email
	          WHERE a.job_id = $1 AND a.resume_blob_name <> ''
	          ORDER BY COALESCE(r.ranking, a.ranking) DESC
	          LIMIT $2`
	rows, err := db.connection.QueryContext(ctx, query, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Application
	for rows.Next() {
		app, canonicalScore, canonicalExpl, err := scanRankedApplication(rows)
		if err != nil {
			return nil, err
		}
		if canonicalScore != nil {
			app.RankingScore = *canonicalScore
		}
		if canonicalExpl != nil && *canonicalExpl != "" {
			app.Explanation = *canonicalExpl
		}
		res = append(res, app)
	}
	return res, rows.Err()
}

func (db *DB) queryApplications(ctx context.Context, query string, args ...interface{}) ([]*Application, error) {
	rows, err := db.connection.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, app)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*Application, error) {
	app := &Application{}
	var status string
	var resume sql.NullString
	err := row.Scan(&app.ID, &app.JobID, &app.Email, &app.CandidateID, &status,
		&resume, &app.ResumeText, &app.ResumeBlobName, &app.RankingScore,
		&app.Explanation, &app.AppliedAt, &app.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	app.Status = ParseStatus(status)
	if resume.Valid {
		app.Resume = []byte(resume.String)
	}
	return app, nil
}

func scanRankedApplication(row rowScanner) (*Application, *float64, *string, error) {
	app := &Application{}
	var status string
	var resume sql.NullString
	var score sql.NullFloat64
	var expl sql.NullString
	err := row.Scan(&app.ID, &app.JobID, &app.Email, &app.CandidateID, &status,
		&resume, &app.ResumeText, &app.ResumeBlobName, &app.RankingScore,
		&app.Explanation, &app.AppliedAt, &app.UpdatedAt, &score, &expl)
	if err != nil {
		return nil, nil, nil, err
	}
	app.Status = ParseStatus(status)
	if resume.Valid {
		app.Resume = []byte(resume.String)
	}
	var scorePtr *float64
	if score.Valid {
		scorePtr = &score.Float64
	}
	var explPtr *string
	if expl.Valid {
		explPtr = &expl.String
	}
	return app, scorePtr, explPtr, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}
