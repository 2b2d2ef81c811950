// Package reconcile holds the batch repair jobs for invariant violations
// accumulated by independent writers: divergent candidate ids, zero or
// unexplained scores, incomplete documents, and drifted denormalized
// copies. Every job supports a dry run and is idempotent: a second run
// with no intervening writes changes nothing.
package reconcile

import (
	"context"

	"go.uber.org/zap"

	"neunet-backend/internal/ghanalysis"
	"neunet-backend/internal/ranking"
	"neunet-backend/internal/storage"
)

// Store is the document-store surface the repair jobs consume. All jobs
// scan cross-partition.
type Store interface {
	AllApplications(ctx context.Context) ([]*storage.Application, error)
	ApplicationsByJob(ctx context.Context, jobID string) ([]*storage.Application, error)
	UpdateCandidateID(ctx context.Context, id, candidateID string) error
	UpdateApplicationScore(ctx context.Context, jobID, email string, score float64, explanation string) error
	DeleteApplication(ctx context.Context, id string) error
	FetchQuestionnaire(ctx context.Context, jobID string) (*storage.Questionnaire, error)
	FetchRankings(ctx context.Context, jobID string) (map[string]*storage.Ranking, error)
	JobsWithoutQuestionnaire(ctx context.Context) ([]string, error)
	StoreQuestionnaire(ctx context.Context, q *storage.Questionnaire) error
}

// Ranker re-runs the full ranking computation for one pair. Satisfied by
// the pipeline service, so batch re-ranks and live submissions share one
// engine.
type Ranker interface {
	RankCandidate(ctx context.Context, jobID, email, jobDescription string) (*ranking.Score, error)
}

// Generator produces a weighted questionnaire for a job that lacks one.
type Generator interface {
	GenerateQuestionnaire(ctx context.Context, jobID string) (*storage.Questionnaire, error)
}

type Jobs struct {
	store     Store
	ranker    Ranker
	generator Generator
	analyses  *ghanalysis.Cache
	log       *zap.Logger
}

func NewJobs(store Store, ranker Ranker, generator Generator, analyses *ghanalysis.Cache, log *zap.Logger) *Jobs {
	return &Jobs{
		store:     store,
		ranker:    ranker,
		generator: generator,
		analyses:  analyses,
		log:       log.Named("reconcile"),
	}
}
