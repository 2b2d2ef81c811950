package pipeline

import (
	"sync"
	"time"

	"neunet-backend/internal/storage"
)

// questionnaireCache is a small in-memory TTL cache for per-job
// questionnaires. Questionnaires are immutable once generated, so a short
// TTL only bounds how long a wholesale regeneration takes to be noticed.
type questionnaireCache struct {
	mu      sync.RWMutex
	entries map[string]*questionnaireEntry
	ttl     time.Duration
}

type questionnaireEntry struct {
	questionnaire *storage.Questionnaire
	timestamp     time.Time
}

func newQuestionnaireCache(ttl time.Duration) *questionnaireCache {
	return &questionnaireCache{
		entries: make(map[string]*questionnaireEntry),
		ttl:     ttl,
	}
}

func (c *questionnaireCache) Get(jobID string) (*storage.Questionnaire, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[jobID]
	if !exists {
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return nil, false
	}
	return entry.questionnaire, true
}

func (c *questionnaireCache) Set(jobID string, q *storage.Questionnaire) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[jobID] = &questionnaireEntry{
		questionnaire: q,
		timestamp:     time.Now(),
	}
}

// CleanExpired removes expired entries (call periodically).
func (c *questionnaireCache) CleanExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for jobID, entry := range c.entries {
		if now.Sub(entry.timestamp) > c.ttl {
			delete(c.entries, jobID)
		}
	}
}
