package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"neunet-backend/internal/ghanalysis"
)

// rankJob is a deferred ranking task.
type rankJob struct {
	JobID          string
	Email          string
	JobDescription string
	Enqueued       time.Time
}

// analysisJob is a background analysis-cache population task.
type analysisJob struct {
	Email    string
	Username string
	Enqueued time.Time
}

// StartWorkers launches the background ranking and analysis workers. They
// run until ctx is cancelled.
func (s *Service) StartWorkers(ctx context.Context) {
	go s.rankWorker(ctx)
	go s.analysisWorker(ctx)
	s.log.Info("background workers started")
}

func (s *Service) rankWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.rankQueue:
			score, err := s.RankCandidate(ctx, job.JobID, job.Email, job.JobDescription)
			if err != nil {
				s.log.Error("deferred ranking failed",
					zap.String("job_id", job.JobID),
					zap.String("email", job.Email),
					zap.Error(err))
				continue
			}
			s.log.Info("deferred ranking completed",
				zap.String("job_id", job.JobID),
				zap.String("email", job.Email),
				zap.Float64("score", score.Normalized),
				zap.Duration("queued_for", time.Since(job.Enqueued)))
		}
	}
}

func (s *Service) analysisWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.analysisQueue:
			_, computed, err := s.analyses.Refresh(ctx, job.Email, job.Username)
			if err != nil {
				s.log.Error("analysis refresh failed",
					zap.String("email", job.Email),
					zap.String("github_identifier", job.Username),
					zap.Error(err))
				continue
			}
			if computed {
				s.log.Info("analysis computed",
					zap.String("email", job.Email),
					zap.String("github_identifier", job.Username))
			}
		}
	}
}

func (s *Service) queueRank(sub Submission) {
	job := rankJob{
		JobID:          sub.JobID,
		Email:          sub.Email,
		JobDescription: sub.JobDescription,
		Enqueued:       time.Now(),
	}
	// Non-blocking send
	select {
	case s.rankQueue <- job:
		s.log.Info("queued deferred ranking",
			zap.String("job_id", sub.JobID),
			zap.String("email", sub.Email))
	default:
		s.log.Warn("rank queue full, dropping job",
			zap.String("job_id", sub.JobID),
			zap.String("email", sub.Email))
	}
}

func (s *Service) queueAnalysis(sub Submission) {
	if s.analyses == nil {
		return
	}
	link := ghanalysis.ExtractGitHubLink(sub.Resume, sub.ResumeText)
	username := ghanalysis.ExtractUsername(link)
	if username == "" {
		return
	}
	job := analysisJob{Email: sub.Email, Username: username, Enqueued: time.Now()}
	// Non-blocking send
	select {
	case s.analysisQueue <- job:
		s.log.Debug("queued analysis refresh",
			zap.String("email", sub.Email),
			zap.String("github_identifier", username))
	default:
		s.log.Warn("analysis queue full, dropping job",
			zap.String("email", sub.Email))
	}
}
