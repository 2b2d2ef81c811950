package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neunet-backend/internal/ranking"
	"neunet-backend/internal/storage"
	"neunet-backend/internal/storage/storetest"
)

type stubEvaluator struct {
	assessment *ranking.Assessment
	err        error
	calls      int
}

func (e *stubEvaluator) Evaluate(_ context.Context, _ ranking.Evidence) (*ranking.Assessment, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.assessment, nil
}

func goodAssessment() *ranking.Assessment {
	return &ranking.Assessment{
		Scores: []ranking.QuestionScore{
			{Question: "Production Go experience?", Weight: 2, Raw: 4},
			{Question: "Distributed systems?", Weight: 1, Raw: 5},
		},
		Explanation: "strong backend background, some distributed systems work",
	}
}

func newTestService(t *testing.T, store *storetest.Store, eval ranking.Evaluator) *Service {
	t.Helper()
	return NewService(store, eval, nil, 4, zap.NewNop())
}

func seedQuestionnaire(t *testing.T, store *storetest.Store, jobID string) {
	t.Helper()
	require.NoError(t, store.StoreQuestionnaire(context.Background(), &storage.Questionnaire{
		JobID: jobID,
		Questions: []storage.Question{
			{Question: "Production Go experience?", Weight: 2},
			{Question: "Distributed systems?", Weight: 1},
		},
	}))
}

func TestSubmitApplicationSynchronous(t *testing.T) {
	store := storetest.New()
	seedQuestionnaire(t, store, "42")
	svc := newTestService(t, store, &stubEvaluator{assessment: goodAssessment()})

	out, err := svc.SubmitApplication(context.Background(), Submission{
		JobID:       "42",
		Email:       "a@x.com",
		CandidateID: "C1",
		ResumeText:  "go developer",
	})
	require.NoError(t, err)

	assert.Equal(t, "C1", out.CandidateID)
	assert.False(t, out.Deferred)
	require.NotNil(t, out.Score)
	// (2*4 + 1*5) / (2*5 + 1*5) = 13/15
	assert.InDelta(t, 13.0/15.0, out.Score.Normalized, 1e-9)

	app, err := store.GetApplication(context.Background(), "42", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "C1", app.CandidateID)
	assert.Equal(t, storage.StatusApplied, app.Status)
	assert.InDelta(t, 13.0/15.0, app.RankingScore, 1e-9)

	r, err := store.FetchRanking(context.Background(), "42", "a@x.com")
	require.NoError(t, err)
	assert.InDelta(t, 13.0/15.0, r.Score, 1e-9)
	assert.NotEmpty(t, r.Explanation)
}

func TestSubmitApplicationDeferred(t *testing.T) {
	store := storetest.New()
	seedQuestionnaire(t, store, "42")
	eval := &stubEvaluator{assessment: goodAssessment()}
	svc := newTestService(t, store, eval)

	out, err := svc.SubmitApplication(context.Background(), Submission{
		JobID:      "42",
		Email:      "a@x.com",
		ResumeText: "go developer",
		Deferred:   true,
	})
	require.NoError(t, err)

	assert.True(t, out.Deferred)
	assert.Nil(t, out.Score)
	// nothing ranked until a worker drains the queue
	assert.Zero(t, eval.calls)
	_, err = store.FetchRanking(context.Background(), "42", "a@x.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// the document itself is stored either way, with a minted identifier
	app, err := store.GetApplication(context.Background(), "42", "a@x.com")
	require.NoError(t, err)
	assert.NotEmpty(t, app.CandidateID)
	assert.NotContains(t, app.CandidateID, "@")
}

func TestResubmissionKeepsCachedScore(t *testing.T) {
	store := storetest.New()
	seedQuestionnaire(t, store, "42")
	svc := newTestService(t, store, &stubEvaluator{assessment: goodAssessment()})

	out, err := svc.SubmitApplication(context.Background(), Submission{
		JobID:       "42",
		Email:       "a@x.com",
		CandidateID: "C1",
		ResumeText:  "go developer",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Score)

	// updated resume, ranking deferred: the cached score must survive
	// until the worker re-ranks
	_, err = svc.SubmitApplication(context.Background(), Submission{
		JobID:       "42",
		Email:       "a@x.com",
		CandidateID: "C1",
		ResumeText:  "go developer, now with kubernetes",
		Deferred:    true,
	})
	require.NoError(t, err)

	app, err := store.GetApplication(context.Background(), "42", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "go developer, now with kubernetes", app.ResumeText)
	assert.InDelta(t, 13.0/15.0, app.RankingScore, 1e-9)
	assert.NotEmpty(t, app.Explanation)
}

func TestSubmitApplicationAdoptsPriorIdentity(t *testing.T) {
	store := storetest.New()
	seedQuestionnaire(t, store, "43")
	require.NoError(t, store.UpsertApplication(context.Background(), &storage.Application{
		JobID: "42", Email: "a@x.com", CandidateID: "C1",
	}))
	svc := newTestService(t, store, &stubEvaluator{assessment: goodAssessment()})

	out, err := svc.SubmitApplication(context.Background(), Submission{
		JobID:      "43",
		Email:      "a@x.com",
		ResumeText: "go developer",
	})
	require.NoError(t, err)
	assert.Equal(t, "C1", out.CandidateID)
}

func TestSubmitApplicationIdentityErrorPropagates(t *testing.T) {
	store := storetest.New()
	boom := errors.New("store down")
	store.Err = boom
	svc := newTestService(t, store, &stubEvaluator{assessment: goodAssessment()})

	_, err := svc.SubmitApplication(context.Background(), Submission{
		JobID: "42", Email: "a@x.com", ResumeText: "go developer",
	})
	assert.ErrorIs(t, err, boom)
}

func TestRankCandidateNoQuestionnaire(t *testing.T) {
	store := storetest.New()
	require.NoError(t, store.UpsertApplication(context.Background(), &storage.Application{
		JobID: "42", Email: "a@x.com", CandidateID: "C1", ResumeText: "go developer",
	}))
	svc := newTestService(t, store, &stubEvaluator{assessment: goodAssessment()})

	_, err := svc.RankCandidate(context.Background(), "42", "a@x.com", "")
	assert.ErrorIs(t, err, ranking.ErrNoScorableCriteria)
}

func TestRankCandidateNoResumeEvidence(t *testing.T) {
	store := storetest.New()
	seedQuestionnaire(t, store, "42")
	require.NoError(t, store.UpsertApplication(context.Background(), &storage.Application{
		JobID: "42", Email: "a@x.com", CandidateID: "C1",
	}))
	eval := &stubEvaluator{assessment: goodAssessment()}
	svc := newTestService(t, store, eval)

	_, err := svc.RankCandidate(context.Background(), "42", "a@x.com", "")
	assert.ErrorIs(t, err, ErrNoResumeEvidence)
	assert.Zero(t, eval.calls)
}

func TestRankCandidateBlankExplanationRefused(t *testing.T) {
	store := storetest.New()
	seedQuestionnaire(t, store, "42")
	require.NoError(t, store.UpsertApplication(context.Background(), &storage.Application{
		JobID: "42", Email: "a@x.com", CandidateID: "C1", ResumeText: "go developer",
	}))
	require.NoError(t, store.StoreRanking(context.Background(), "42", "a@x.com", 0.5, "earlier run"))

	blank := goodAssessment()
	blank.Explanation = "   "
	svc := newTestService(t, store, &stubEvaluator{assessment: blank})

	_, err := svc.RankCandidate(context.Background(), "42", "a@x.com", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ranking.ErrMalformedAssessment)

	// the prior record survives an incomplete computation
	r, err := store.FetchRanking(context.Background(), "42", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 0.5, r.Score)
	assert.Equal(t, "earlier run", r.Explanation)
}

func TestRankCandidateEvaluatorFailure(t *testing.T) {
	store := storetest.New()
	seedQuestionnaire(t, store, "42")
	require.NoError(t, store.UpsertApplication(context.Background(), &storage.Application{
		JobID: "42", Email: "a@x.com", CandidateID: "C1", ResumeText: "go developer",
	}))
	svc := newTestService(t, store, &stubEvaluator{err: ranking.ErrEvaluatorFailed})

	_, err := svc.RankCandidate(context.Background(), "42", "a@x.com", "")
	assert.ErrorIs(t, err, ranking.ErrEvaluatorFailed)
	_, err = store.FetchRanking(context.Background(), "42", "a@x.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRankCandidateDeterministic(t *testing.T) {
	store := storetest.New()
	seedQuestionnaire(t, store, "42")
	require.NoError(t, store.UpsertApplication(context.Background(), &storage.Application{
		JobID: "42", Email: "a@x.com", CandidateID: "C1", ResumeText: "go developer",
	}))
	svc := newTestService(t, store, &stubEvaluator{assessment: goodAssessment()})

	first, err := svc.RankCandidate(context.Background(), "42", "a@x.com", "")
	require.NoError(t, err)
	second, err := svc.RankCandidate(context.Background(), "42", "a@x.com", "")
	require.NoError(t, err)
	assert.Equal(t, first.Normalized, second.Normalized)
}

func TestQuestionnaireCacheServesRepeatLookups(t *testing.T) {
	store := storetest.New()
	seedQuestionnaire(t, store, "42")
	require.NoError(t, store.UpsertApplication(context.Background(), &storage.Application{
		JobID: "42", Email: "a@x.com", CandidateID: "C1", ResumeText: "go developer",
	}))
	svc := newTestService(t, store, &stubEvaluator{assessment: goodAssessment()})

	_, err := svc.RankCandidate(context.Background(), "42", "a@x.com", "")
	require.NoError(t, err)

	// drop the stored questionnaire; the cached copy still serves
	delete(store.Questionnaires, "42")
	_, err = svc.RankCandidate(context.Background(), "42", "a@x.com", "")
	assert.NoError(t, err)
}
