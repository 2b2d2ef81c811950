package ghanalysis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neunet-backend/internal/storage"
)

type memAnalysisStore struct {
	entries map[string]*storage.AnalysisEntry
	upserts int
}

func newMemAnalysisStore() *memAnalysisStore {
	return &memAnalysisStore{entries: make(map[string]*storage.AnalysisEntry)}
}

func (m *memAnalysisStore) FetchAnalysis(_ context.Context, email, externalID string) (*storage.AnalysisEntry, error) {
	entry, ok := m.entries[storage.AnalysisID(email, externalID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return entry, nil
}

func (m *memAnalysisStore) UpsertAnalysis(_ context.Context, entry *storage.AnalysisEntry) error {
	m.entries[entry.ID] = entry
	m.upserts++
	return nil
}

type stubAnalyzer struct {
	result json.RawMessage
	calls  int
}

func (s *stubAnalyzer) Analyze(_ context.Context, _, _ string) (json.RawMessage, error) {
	s.calls++
	return s.result, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRefreshComputesWhenMissing(t *testing.T) {
	store := newMemAnalysisStore()
	analyzer := &stubAnalyzer{result: json.RawMessage(`{"repos": 12}`)}
	cache := NewCache(store, analyzer, DefaultMaxAge, zap.NewNop())

	entry, computed, err := cache.Refresh(context.Background(), "a@x.com", "octocat")
	require.NoError(t, err)
	assert.True(t, computed)
	assert.Equal(t, 1, analyzer.calls)
	assert.JSONEq(t, `{"repos": 12}`, string(entry.Result))
	assert.Equal(t, "analysis_a@x.com_octocat", entry.ID)
}

func TestRefreshUsesFreshEntry(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newMemAnalysisStore()
	store.entries["analysis_a@x.com_octocat"] = &storage.AnalysisEntry{
		ID:         "analysis_a@x.com_octocat",
		Email:      "a@x.com",
		ExternalID: "octocat",
		Result:     json.RawMessage(`{"repos": 3}`),
		CreatedAt:  now.Add(-30 * 24 * time.Hour),
	}
	analyzer := &stubAnalyzer{result: json.RawMessage(`{"repos": 99}`)}
	cache := NewCache(store, analyzer, DefaultMaxAge, zap.NewNop())
	cache.now = fixedClock(now)

	entry, computed, err := cache.Refresh(context.Background(), "a@x.com", "octocat")
	require.NoError(t, err)
	assert.False(t, computed)
	assert.Equal(t, 0, analyzer.calls)
	assert.JSONEq(t, `{"repos": 3}`, string(entry.Result))
}

func TestStalenessBoundary(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := NewCache(newMemAnalysisStore(), &stubAnalyzer{}, DefaultMaxAge, zap.NewNop())
	cache.now = fixedClock(now)

	// exactly at the threshold: stale
	atThreshold := &storage.AnalysisEntry{CreatedAt: now.Add(-DefaultMaxAge)}
	assert.False(t, cache.Fresh(atThreshold))

	// one second inside the window: fresh
	justInside := &storage.AnalysisEntry{CreatedAt: now.Add(-DefaultMaxAge + time.Second)}
	assert.True(t, cache.Fresh(justInside))

	assert.False(t, cache.Fresh(nil))
	assert.False(t, cache.Fresh(&storage.AnalysisEntry{}))
}

func TestRefreshSupersedesStaleEntry(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newMemAnalysisStore()
	store.entries["analysis_a@x.com_octocat"] = &storage.AnalysisEntry{
		ID:         "analysis_a@x.com_octocat",
		Email:      "a@x.com",
		ExternalID: "octocat",
		Result:     json.RawMessage(`{"repos": 3}`),
		CreatedAt:  now.Add(-DefaultMaxAge),
	}
	analyzer := &stubAnalyzer{result: json.RawMessage(`{"repos": 99}`)}
	cache := NewCache(store, analyzer, DefaultMaxAge, zap.NewNop())
	cache.now = fixedClock(now)

	entry, computed, err := cache.Refresh(context.Background(), "a@x.com", "octocat")
	require.NoError(t, err)
	assert.True(t, computed)
	assert.Equal(t, 1, analyzer.calls)
	assert.JSONEq(t, `{"repos": 99}`, string(entry.Result))
	assert.Equal(t, 1, store.upserts)
	// superseded in place, not duplicated
	assert.Len(t, store.entries, 1)
}

func TestExtractGitHubLink(t *testing.T) {
	tests := []struct {
		name   string
		resume string
		text   string
		want   string
	}{
		{
			name:   "structured links camelCase",
			resume: `{"links": {"gitHub": "https://github.com/octocat"}}`,
			want:   "https://github.com/octocat",
		},
		{
			name:   "structured top-level",
			resume: `{"github": "https://github.com/hubber"}`,
			want:   "https://github.com/hubber",
		},
		{
			name: "raw text fallback",
			text: "Projects: https://github.com/someone/repo and more",
			want: "https://github.com/someone/repo",
		},
		{
			name: "nothing",
			text: "no links at all",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resume json.RawMessage
			if tt.resume != "" {
				resume = json.RawMessage(tt.resume)
			}
			assert.Equal(t, tt.want, ExtractGitHubLink(resume, tt.text))
		})
	}
}

func TestExtractUsername(t *testing.T) {
	assert.Equal(t, "octocat", ExtractUsername("https://github.com/octocat"))
	assert.Equal(t, "octocat", ExtractUsername("https://www.github.com/octocat/"))
	assert.Equal(t, "some-one", ExtractUsername("github.com/some-one/project"))
	assert.Equal(t, "", ExtractUsername("https://octocat.github.io"))
	assert.Equal(t, "", ExtractUsername(""))
	assert.Equal(t, "", ExtractUsername("https://gitlab.com/octocat"))
}
