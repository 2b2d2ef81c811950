// Package storetest provides an in-memory document store double with the
// same contracts as the Postgres adapter: idempotent upserts, composite
// ids, explanation-required ranking writes.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"neunet-backend/internal/storage"
)

type Store struct {
	mu             sync.Mutex
	Applications   map[string]*storage.Application
	Rankings       map[string]*storage.Ranking
	Questionnaires map[string]*storage.Questionnaire
	Analyses       map[string]*storage.AnalysisEntry

	// Writes counts every mutating call that actually changed state.
	// Reconciliation idempotence tests assert it stays flat on a second
	// pass.
	Writes int

	// Err, when set, is returned by every method.
	Err error
}

func New() *Store {
	return &Store{
		Applications:   make(map[string]*storage.Application),
		Rankings:       make(map[string]*storage.Ranking),
		Questionnaires: make(map[string]*storage.Questionnaire),
		Analyses:       make(map[string]*storage.AnalysisEntry),
	}
}

func (s *Store) UpsertApplication(_ context.Context, app *storage.Application) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.ID == "" {
		app.ID = storage.ApplicationID(app.JobID, app.Email)
	}
	cp := *app
	// Resubmission keeps the cached score copy; only the ranking path
	// writes those fields.
	if prev, ok := s.Applications[app.ID]; ok {
		cp.RankingScore = prev.RankingScore
		cp.Explanation = prev.Explanation
	}
	s.Applications[app.ID] = &cp
	s.Writes++
	return nil
}

func (s *Store) GetApplication(_ context.Context, jobID, email string) (*storage.Application, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.Applications[storage.ApplicationID(jobID, email)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (s *Store) ApplicationsByEmail(_ context.Context, email string) ([]*storage.Application, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.collect(func(app *storage.Application) bool { return app.Email == email }), nil
}

func (s *Store) ApplicationsByJob(_ context.Context, jobID string) ([]*storage.Application, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.collect(func(app *storage.Application) bool { return app.JobID == jobID }), nil
}

func (s *Store) AllApplications(_ context.Context) ([]*storage.Application, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.collect(func(*storage.Application) bool { return true }), nil
}

func (s *Store) UpdateCandidateID(_ context.Context, id, candidateID string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.Applications[id]
	if !ok {
		return storage.ErrNotFound
	}
	if app.CandidateID != candidateID {
		app.CandidateID = candidateID
		s.Writes++
	}
	return nil
}

func (s *Store) UpdateApplicationScore(_ context.Context, jobID, email string, score float64, explanation string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.Applications[storage.ApplicationID(jobID, email)]
	if !ok {
		return storage.ErrNotFound
	}
	if app.RankingScore != score || app.Explanation != explanation {
		app.RankingScore = score
		app.Explanation = explanation
		s.Writes++
	}
	return nil
}

func (s *Store) DeleteApplication(_ context.Context, id string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Applications[id]; ok {
		delete(s.Applications, id)
		s.Writes++
	}
	return nil
}

func (s *Store) StoreRanking(_ context.Context, jobID, email string, score float64, explanation string) error {
	if s.Err != nil {
		return s.Err
	}
	if strings.TrimSpace(explanation) == "" {
		return storage.ErrMissingExplanation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := storage.ApplicationID(jobID, email)
	now := time.Now().UTC()
	if prev, ok := s.Rankings[id]; ok && prev.RankedAt.After(now) {
		return nil
	}
	s.Rankings[id] = &storage.Ranking{
		ID:          id,
		JobID:       jobID,
		Email:       email,
		Score:       score,
		Explanation: explanation,
		RankedAt:    now,
	}
	s.Writes++
	return nil
}

func (s *Store) FetchRanking(_ context.Context, jobID, email string) (*storage.Ranking, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.Rankings[storage.ApplicationID(jobID, email)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) FetchRankings(_ context.Context, jobID string) (map[string]*storage.Ranking, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make(map[string]*storage.Ranking)
	for _, r := range s.Rankings {
		if r.JobID == jobID {
			cp := *r
			res[r.Email] = &cp
		}
	}
	return res, nil
}

func (s *Store) StoreQuestionnaire(_ context.Context, q *storage.Questionnaire) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.Questionnaires[q.JobID] = &cp
	s.Writes++
	return nil
}

func (s *Store) FetchQuestionnaire(_ context.Context, jobID string) (*storage.Questionnaire, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.Questionnaires[jobID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *Store) JobsWithoutQuestionnaire(_ context.Context) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var res []string
	for _, app := range s.Applications {
		if seen[app.JobID] {
			continue
		}
		seen[app.JobID] = true
		if _, ok := s.Questionnaires[app.JobID]; !ok {
			res = append(res, app.JobID)
		}
	}
	sort.Strings(res)
	return res, nil
}

func (s *Store) FetchAnalysis(_ context.Context, email, externalID string) (*storage.AnalysisEntry, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.Analyses[storage.AnalysisID(email, externalID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *Store) UpsertAnalysis(_ context.Context, entry *storage.AnalysisEntry) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = storage.AnalysisID(entry.Email, entry.ExternalID)
	}
	cp := *entry
	s.Analyses[entry.ID] = &cp
	s.Writes++
	return nil
}

func (s *Store) collect(keep func(*storage.Application) bool) []*storage.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*storage.Application
	for _, app := range s.Applications {
		if keep(app) {
			cp := *app
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].AppliedAt.Equal(res[j].AppliedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].AppliedAt.Before(res[j].AppliedAt)
	})
	return res
}
