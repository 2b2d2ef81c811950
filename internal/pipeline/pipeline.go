// Package pipeline wires an application submission through identity
// resolution, ranking, and analysis-cache population. The synchronous and
// background paths share one engine, so identical inputs always yield
// identical scores.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"neunet-backend/internal/ghanalysis"
	"neunet-backend/internal/identity"
	"neunet-backend/internal/ranking"
	"neunet-backend/internal/storage"
)

// ErrNoResumeEvidence means ranking was requested for an application
// without resume text. The pair is skipped, never scored with fabricated
// evidence.
var ErrNoResumeEvidence = errors.New("pipeline: application has no resume evidence")

// Store is the document-store surface the pipeline consumes.
type Store interface {
	identity.ApplicationSource
	UpsertApplication(ctx context.Context, app *storage.Application) error
	GetApplication(ctx context.Context, jobID, email string) (*storage.Application, error)
	FetchQuestionnaire(ctx context.Context, jobID string) (*storage.Questionnaire, error)
	StoreRanking(ctx context.Context, jobID, email string, score float64, explanation string) error
	UpdateApplicationScore(ctx context.Context, jobID, email string, score float64, explanation string) error
}

// Submission is one incoming application.
type Submission struct {
	JobID          string
	Email          string
	CandidateID    string // optional explicit identifier
	JobDescription string
	Resume         json.RawMessage
	ResumeText     string
	ResumeBlobName string
	Status         string
	// Deferred queues the ranking instead of blocking the caller on it.
	Deferred bool
}

// Outcome reports what a submission produced.
type Outcome struct {
	CandidateID string
	// Score is set on the synchronous path once ranking succeeded.
	Score *ranking.Score
	// Deferred is true when ranking was queued for a background worker.
	Deferred bool
}

type Service struct {
	store     Store
	resolver  *identity.Resolver
	evaluator ranking.Evaluator
	analyses  *ghanalysis.Cache
	qcache    *questionnaireCache
	log       *zap.Logger

	rankQueue     chan rankJob
	analysisQueue chan analysisJob
}

func NewService(store Store, evaluator ranking.Evaluator, analyses *ghanalysis.Cache, queueSize int, log *zap.Logger) *Service {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Service{
		store:         store,
		resolver:      identity.NewResolver(store, log),
		evaluator:     evaluator,
		analyses:      analyses,
		qcache:        newQuestionnaireCache(5 * time.Minute),
		log:           log.Named("pipeline"),
		rankQueue:     make(chan rankJob, queueSize),
		analysisQueue: make(chan analysisJob, queueSize),
	}
}

// SubmitApplication resolves the candidate's identity, persists the
// application document, and triggers ranking plus analysis-cache
// population. Identity errors propagate; they are never papered over with
// a guessed identifier.
func (s *Service) SubmitApplication(ctx context.Context, sub Submission) (*Outcome, error) {
	res, err := s.resolver.Resolve(ctx, sub.Email, sub.CandidateID)
	if err != nil {
		return nil, err
	}
	if len(res.Divergent) > 0 {
		s.log.Warn("identity divergence detected, reconciliation needed",
			zap.String("email", sub.Email),
			zap.Strings("candidate_ids", res.Divergent))
	}

	app := &storage.Application{
		ID:             storage.ApplicationID(sub.JobID, sub.Email),
		JobID:          sub.JobID,
		Email:          sub.Email,
		CandidateID:    res.CandidateID,
		Status:         storage.ParseStatus(sub.Status),
		Resume:         sub.Resume,
		ResumeText:     sub.ResumeText,
		ResumeBlobName: sub.ResumeBlobName,
	}
	if sub.Status == "" {
		app.Status = storage.StatusApplied
	}
	if err := s.store.UpsertApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("pipeline: store application: %w", err)
	}

	s.queueAnalysis(sub)

	outcome := &Outcome{CandidateID: res.CandidateID}
	if sub.Deferred {
		s.queueRank(sub)
		outcome.Deferred = true
		return outcome, nil
	}

	score, err := s.RankCandidate(ctx, sub.JobID, sub.Email, sub.JobDescription)
	if err != nil {
		return nil, err
	}
	outcome.Score = score
	return outcome, nil
}

// RankCandidate runs one full ranking computation for a (job, email) pair
// and persists the canonical record. Both the synchronous submission path
// and background re-ranks land here.
func (s *Service) RankCandidate(ctx context.Context, jobID, email, jobDescription string) (*ranking.Score, error) {
	q, err := s.fetchQuestionnaire(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: job %s has no questionnaire", ranking.ErrNoScorableCriteria, jobID)
		}
		return nil, fmt.Errorf("pipeline: fetch questionnaire: %w", err)
	}

	app, err := s.store.GetApplication(ctx, jobID, email)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch application %s/%s: %w", jobID, email, err)
	}
	if app.ResumeText == "" {
		return nil, ErrNoResumeEvidence
	}

	assessment, err := s.evaluator.Evaluate(ctx, ranking.Evidence{
		JobDescription: jobDescription,
		Questionnaire:  q.Questions,
		ResumeText:     app.ResumeText,
	})
	if err != nil {
		return nil, err
	}
	if err := ranking.ValidateAssessment(assessment); err != nil {
		return nil, err
	}

	score, err := ranking.Compute(assessment.Scores)
	if err != nil {
		return nil, err
	}

	if err := s.store.StoreRanking(ctx, jobID, email, score.Normalized, assessment.Explanation); err != nil {
		if errors.Is(err, storage.ErrMissingExplanation) {
			// Incomplete computation: surfaced, not persisted as final.
			return nil, err
		}
		return nil, fmt.Errorf("pipeline: store ranking: %w", err)
	}

	// The application's copy is a cache of the ranking record. Failing to
	// refresh it is drift the reconciliation job repairs, not a failed
	// ranking.
	if err := s.store.UpdateApplicationScore(ctx, jobID, email, score.Normalized, assessment.Explanation); err != nil {
		s.log.Warn("failed to refresh denormalized score copy",
			zap.String("job_id", jobID),
			zap.String("email", email),
			zap.Error(err))
	}

	s.log.Info("candidate ranked",
		zap.String("job_id", jobID),
		zap.String("email", email),
		zap.Float64("score", score.Normalized),
		zap.Int("excluded_questions", len(score.Excluded)))
	return score, nil
}

func (s *Service) fetchQuestionnaire(ctx context.Context, jobID string) (*storage.Questionnaire, error) {
	if q, ok := s.qcache.Get(jobID); ok {
		return q, nil
	}
	q, err := s.store.FetchQuestionnaire(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.qcache.Set(jobID, q)
	return q, nil
}
