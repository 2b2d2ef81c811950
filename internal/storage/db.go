package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq" // also registers the postgres driver
	"go.uber.org/zap"
)

// ErrNotFound is returned when a document does not exist in its container.
var ErrNotFound = errors.New("storage: document not found")

// DB wraps the document containers. Each container is one table
// partitioned logically by its partition key column (job_id for
// applications/rankings/questionnaires, candidate_email for analyses).
type DB struct {
	connection *sql.DB
	log        *zap.Logger
}

func NewDB(dataSourceName string, log *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}

	// Connection pool tuning
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DB{connection: db, log: log.Named("storage")}, nil
}

func (db *DB) Close() {
	if err := db.connection.Close(); err != nil {
		db.log.Warn("error closing database connection", zap.Error(err))
	}
}

// EnsureSchema creates the containers if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS applications (
			id               TEXT PRIMARY KEY,
			job_id           TEXT NOT NULL,
			email            TEXT NOT NULL,
			candidate_id     TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL DEFAULT 'Applied',
			resume           JSONB,
			resume_text      TEXT NOT NULL DEFAULT '',
			resume_blob_name TEXT NOT NULL DEFAULT '',
			ranking          DOUBLE PRECISION NOT NULL DEFAULT 0,
			explanation      TEXT NOT NULL DEFAULT '',
			applied_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (job_id, email)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_email ON applications (email)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_job ON applications (job_id)`,
		`CREATE TABLE IF NOT EXISTS rankings (
			id              TEXT PRIMARY KEY,
			job_id          TEXT NOT NULL,
			candidate_email TEXT NOT NULL,
			ranking         DOUBLE PRECISION NOT NULL,
			explanation     TEXT NOT NULL,
			ranked_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (job_id, candidate_email)
		)`,
		`CREATE TABLE IF NOT EXISTS job_questionnaires (
			id            TEXT PRIMARY KEY,
			job_id        TEXT NOT NULL UNIQUE,
			questionnaire JSONB NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS github_analysis (
			id                TEXT PRIMARY KEY,
			candidate_email   TEXT NOT NULL,
			github_identifier TEXT NOT NULL,
			result            JSONB,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (candidate_email, github_identifier)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.connection.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	db.log.Info("all containers ready")
	return nil
}

// withRetry re-runs fn once when the store reports a transient write
// conflict, so concurrent writers converge instead of failing.
func (db *DB) withRetry(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || !isSerializationFailure(err) {
		return err
	}
	db.log.Debug("write conflict, retrying", zap.Error(err))
	return fn(ctx)
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// GetConnection returns the underlying database connection for advanced queries.
func (db *DB) GetConnection() *sql.DB {
	return db.connection
}
