package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neunet-backend/internal/ranking"
	"neunet-backend/internal/storage"
	"neunet-backend/internal/storage/storetest"
)

func seedApp(t *testing.T, store *storetest.Store, app *storage.Application) {
	t.Helper()
	require.NoError(t, store.UpsertApplication(context.Background(), app))
}

func TestUnifySelectsPluralityWinner(t *testing.T) {
	store := storetest.New()
	// three documents agree on C1, one still carries the raw email
	seedApp(t, store, &storage.Application{JobID: "1", Email: "a@x.com", CandidateID: "C1"})
	seedApp(t, store, &storage.Application{JobID: "2", Email: "a@x.com", CandidateID: "C1"})
	seedApp(t, store, &storage.Application{JobID: "3", Email: "a@x.com", CandidateID: "C1"})
	seedApp(t, store, &storage.Application{JobID: "4", Email: "a@x.com", CandidateID: "a@x.com"})

	jobs := NewJobs(store, nil, nil, nil, zap.NewNop())
	report, err := jobs.UnifyCandidateIDs(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 1, report.Applied)
	require.Len(t, report.Changes, 1)
	assert.Equal(t, "4_a@x.com", report.Changes[0].DocID)
	assert.Equal(t, "C1", report.Changes[0].To)

	fixed, err := store.GetApplication(context.Background(), "4", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "C1", fixed.CandidateID)
}

func TestUnifyDryRunWritesNothing(t *testing.T) {
	store := storetest.New()
	seedApp(t, store, &storage.Application{JobID: "1", Email: "a@x.com", CandidateID: "C1"})
	seedApp(t, store, &storage.Application{JobID: "2", Email: "a@x.com", CandidateID: "C2"})
	writesAfterSeed := store.Writes

	jobs := NewJobs(store, nil, nil, nil, zap.NewNop())
	report, err := jobs.UnifyCandidateIDs(context.Background(), false)
	require.NoError(t, err)

	assert.NotEmpty(t, report.Changes)
	assert.Equal(t, 0, report.Applied)
	assert.Equal(t, writesAfterSeed, store.Writes)
}

func TestUnifyMintsWhenAllUnresolved(t *testing.T) {
	store := storetest.New()
	seedApp(t, store, &storage.Application{JobID: "1", Email: "b@x.com", CandidateID: ""})
	seedApp(t, store, &storage.Application{JobID: "2", Email: "b@x.com", CandidateID: "b@x.com"})

	jobs := NewJobs(store, nil, nil, nil, zap.NewNop())
	report, err := jobs.UnifyCandidateIDs(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Applied)
	first, err := store.GetApplication(context.Background(), "1", "b@x.com")
	require.NoError(t, err)
	second, err := store.GetApplication(context.Background(), "2", "b@x.com")
	require.NoError(t, err)
	assert.NotEmpty(t, first.CandidateID)
	assert.NotContains(t, first.CandidateID, "@")
	assert.Equal(t, first.CandidateID, second.CandidateID)
}

func TestUnifyIdempotent(t *testing.T) {
	store := storetest.New()
	seedApp(t, store, &storage.Application{JobID: "1", Email: "a@x.com", CandidateID: "C1"})
	seedApp(t, store, &storage.Application{JobID: "2", Email: "a@x.com", CandidateID: "C2"})
	seedApp(t, store, &storage.Application{JobID: "3", Email: "a@x.com", CandidateID: "C1"})
	seedApp(t, store, &storage.Application{JobID: "4", Email: "c@y.com", CandidateID: ""})

	jobs := NewJobs(store, nil, nil, nil, zap.NewNop())
	first, err := jobs.UnifyCandidateIDs(context.Background(), true)
	require.NoError(t, err)
	assert.NotZero(t, first.Applied)

	writesAfterFirst := store.Writes
	second, err := jobs.UnifyCandidateIDs(context.Background(), true)
	require.NoError(t, err)
	assert.Zero(t, second.Applied)
	assert.Empty(t, second.Changes)
	assert.Equal(t, writesAfterFirst, store.Writes)
}

type countingRanker struct {
	store *storetest.Store
	calls int
}

func (r *countingRanker) RankCandidate(ctx context.Context, jobID, email, _ string) (*ranking.Score, error) {
	r.calls++
	expl := "re-ranked from stored evidence"
	if err := r.store.StoreRanking(ctx, jobID, email, 0.75, expl); err != nil {
		return nil, err
	}
	if err := r.store.UpdateApplicationScore(ctx, jobID, email, 0.75, expl); err != nil {
		return nil, err
	}
	return &ranking.Score{Normalized: 0.75, CandidateTotal: 7.5, MaxTotal: 10, Valid: 2}, nil
}

func TestRerankIncomplete(t *testing.T) {
	store := storetest.New()
	require.NoError(t, store.StoreQuestionnaire(context.Background(), &storage.Questionnaire{
		JobID:     "42",
		Questions: []storage.Question{{Question: "Go?", Weight: 2}},
	}))
	// zero score, has evidence: re-ranked
	seedApp(t, store, &storage.Application{JobID: "42", Email: "a@x.com", CandidateID: "C1", ResumeText: "go dev"})
	// zero score, no evidence: skipped
	seedApp(t, store, &storage.Application{JobID: "42", Email: "b@x.com", CandidateID: "C2"})
	// zero score, no questionnaire for its job: skipped
	seedApp(t, store, &storage.Application{JobID: "77", Email: "c@x.com", CandidateID: "C3", ResumeText: "dev"})
	// already scored and explained: untouched
	seedApp(t, store, &storage.Application{JobID: "42", Email: "d@x.com", CandidateID: "C4", ResumeText: "dev", RankingScore: 0.6, Explanation: "fine"})

	ranker := &countingRanker{store: store}
	jobs := NewJobs(store, ranker, nil, nil, zap.NewNop())

	report, err := jobs.RerankIncomplete(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 3, report.Incomplete)
	assert.Equal(t, []string{"42_a@x.com"}, report.Reranked)
	assert.Len(t, report.Skipped, 2)
	assert.Equal(t, 1, ranker.calls)
}

func TestRerankIdempotent(t *testing.T) {
	store := storetest.New()
	require.NoError(t, store.StoreQuestionnaire(context.Background(), &storage.Questionnaire{
		JobID:     "42",
		Questions: []storage.Question{{Question: "Go?", Weight: 2}},
	}))
	seedApp(t, store, &storage.Application{JobID: "42", Email: "a@x.com", CandidateID: "C1", ResumeText: "go dev"})

	ranker := &countingRanker{store: store}
	jobs := NewJobs(store, ranker, nil, nil, zap.NewNop())

	_, err := jobs.RerankIncomplete(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 1, ranker.calls)

	second, err := jobs.RerankIncomplete(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, ranker.calls)
	assert.Zero(t, second.Incomplete)
}

func TestDetectThenDeleteIncomplete(t *testing.T) {
	store := storetest.New()
	seedApp(t, store, &storage.Application{JobID: "42", Email: "ok@x.com", CandidateID: "C1", ResumeBlobName: "resumes/ok.pdf"})
	seedApp(t, store, &storage.Application{JobID: "42", Email: "noblob@x.com", CandidateID: "C2"})
	seedApp(t, store, &storage.Application{JobID: "42", Email: "noid@x.com", ResumeBlobName: "resumes/noid.pdf"})

	jobs := NewJobs(store, nil, nil, nil, zap.NewNop())

	flagged, err := jobs.DetectIncomplete(context.Background())
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	// detection alone removes nothing
	assert.Len(t, store.Applications, 3)

	deleted, err := jobs.DeleteIncomplete(context.Background(), flagged)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Len(t, store.Applications, 1)

	// second detection pass finds nothing new
	flagged, err = jobs.DetectIncomplete(context.Background())
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestSyncScoresFavorsRankingRecord(t *testing.T) {
	store := storetest.New()
	seedApp(t, store, &storage.Application{JobID: "42", Email: "a@x.com", CandidateID: "C1", RankingScore: 0.2, Explanation: "stale"})
	require.NoError(t, store.StoreRanking(context.Background(), "42", "a@x.com", 0.9, "authoritative"))

	jobs := NewJobs(store, nil, nil, nil, zap.NewNop())
	report, err := jobs.SyncScores(context.Background(), "42", true)
	require.NoError(t, err)

	require.Len(t, report.Drifted, 1)
	assert.Equal(t, 1, report.Applied)
	app, err := store.GetApplication(context.Background(), "42", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 0.9, app.RankingScore)
	assert.Equal(t, "authoritative", app.Explanation)

	// second pass: no drift left
	writes := store.Writes
	report, err = jobs.SyncScores(context.Background(), "42", true)
	require.NoError(t, err)
	assert.Empty(t, report.Drifted)
	assert.Equal(t, writes, store.Writes)
}

func TestSyncScoresReportsOrphanRankings(t *testing.T) {
	store := storetest.New()
	require.NoError(t, store.StoreRanking(context.Background(), "42", "ghost@x.com", 0.5, "ranked but never stored"))

	jobs := NewJobs(store, nil, nil, nil, zap.NewNop())
	report, err := jobs.SyncScores(context.Background(), "42", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"42/ghost@x.com"}, report.Unranked)
}

type stubGenerator struct {
	calls int
}

func (g *stubGenerator) GenerateQuestionnaire(_ context.Context, jobID string) (*storage.Questionnaire, error) {
	g.calls++
	return &storage.Questionnaire{
		JobID:     jobID,
		Questions: []storage.Question{{Question: "Experience?", Weight: 1}},
	}, nil
}

func TestBackfillQuestionnaires(t *testing.T) {
	store := storetest.New()
	seedApp(t, store, &storage.Application{JobID: "42", Email: "a@x.com", CandidateID: "C1"})
	seedApp(t, store, &storage.Application{JobID: "77", Email: "b@x.com", CandidateID: "C2"})
	require.NoError(t, store.StoreQuestionnaire(context.Background(), &storage.Questionnaire{
		JobID:     "77",
		Questions: []storage.Question{{Question: "SQL?", Weight: 1}},
	}))

	gen := &stubGenerator{}
	jobs := NewJobs(store, nil, gen, nil, zap.NewNop())

	report, err := jobs.BackfillQuestionnaires(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, report.Missing)
	assert.Equal(t, []string{"42"}, report.Generated)
	assert.Equal(t, 1, gen.calls)

	// idempotent: nothing missing on the second pass
	report, err = jobs.BackfillQuestionnaires(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, report.Missing)
	assert.Equal(t, 1, gen.calls)
}
