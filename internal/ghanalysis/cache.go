package ghanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"neunet-backend/internal/storage"
)

// DefaultMaxAge is how long a stored analysis stays fresh.
const DefaultMaxAge = 180 * 24 * time.Hour

// Analyzer runs the actual profile analysis. The production implementation
// talks to the GitHub API and an LLM; both live outside this core.
type Analyzer interface {
	Analyze(ctx context.Context, username, email string) (json.RawMessage, error)
}

// AnalysisStore is the slice of the document store the cache needs.
type AnalysisStore interface {
	FetchAnalysis(ctx context.Context, email, externalID string) (*storage.AnalysisEntry, error)
	UpsertAnalysis(ctx context.Context, entry *storage.AnalysisEntry) error
}

type Cache struct {
	store    AnalysisStore
	analyzer Analyzer
	maxAge   time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewCache(store AnalysisStore, analyzer Analyzer, maxAge time.Duration, log *zap.Logger) *Cache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cache{
		store:    store,
		analyzer: analyzer,
		maxAge:   maxAge,
		now:      time.Now,
		log:      log.Named("ghanalysis"),
	}
}

// Fresh reports whether an entry is still inside the staleness window. An
// entry aged exactly maxAge is already stale.
func (c *Cache) Fresh(entry *storage.AnalysisEntry) bool {
	if entry == nil || entry.CreatedAt.IsZero() {
		return false
	}
	return c.now().UTC().Sub(entry.CreatedAt) < c.maxAge
}

// Refresh returns the cached analysis for (email, username), recomputing
// it when missing or stale. A recomputed result supersedes the old entry
// wholesale. The second return value reports whether the analyzer ran.
func (c *Cache) Refresh(ctx context.Context, email, username string) (*storage.AnalysisEntry, bool, error) {
	entry, err := c.store.FetchAnalysis(ctx, email, username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("ghanalysis: fetch cached analysis: %w", err)
	}

	if c.Fresh(entry) {
		c.log.Debug("analysis cache hit",
			zap.String("email", email),
			zap.String("github_identifier", username))
		return entry, false, nil
	}

	result, err := c.analyzer.Analyze(ctx, username, email)
	if err != nil {
		return nil, false, fmt.Errorf("ghanalysis: analyze %s: %w", username, err)
	}

	fresh := &storage.AnalysisEntry{
		ID:         storage.AnalysisID(email, username),
		Email:      email,
		ExternalID: username,
		Result:     result,
		CreatedAt:  c.now().UTC(),
	}
	if err := c.store.UpsertAnalysis(ctx, fresh); err != nil {
		return nil, false, fmt.Errorf("ghanalysis: store analysis: %w", err)
	}
	c.log.Info("analysis refreshed",
		zap.String("email", email),
		zap.String("github_identifier", username))
	return fresh, true, nil
}
