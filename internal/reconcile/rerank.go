package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"neunet-backend/internal/storage"
)

// RerankSkip records a candidate that could not be re-ranked and why.
// Skipped pairs are reported, never given a fabricated score.
type RerankSkip struct {
	JobID  string
	Email  string
	Reason string
}

// RerankReport summarizes one re-ranking pass.
type RerankReport struct {
	Scanned    int
	Incomplete int
	Reranked   []string // document ids, apply mode only
	Planned    []string // document ids, dry-run mode
	Skipped    []RerankSkip
}

// RerankIncomplete re-ranks applications whose score is zero or whose
// explanation is missing. A pair is only re-ranked when the job's
// questionnaire and the candidate's resume evidence are both on record;
// otherwise it is skipped with a reason.
func (j *Jobs) RerankIncomplete(ctx context.Context, apply bool) (*RerankReport, error) {
	if apply && j.ranker == nil {
		return nil, errors.New("reconcile: no ranker configured")
	}

	apps, err := j.store.AllApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: scan applications: %w", err)
	}

	report := &RerankReport{Scanned: len(apps)}
	for _, app := range apps {
		if app.RankingScore != 0 && app.Explanation != "" {
			continue
		}
		report.Incomplete++

		if app.ResumeText == "" {
			report.Skipped = append(report.Skipped, RerankSkip{
				JobID: app.JobID, Email: app.Email, Reason: "no resume evidence",
			})
			continue
		}
		if _, err := j.store.FetchQuestionnaire(ctx, app.JobID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				report.Skipped = append(report.Skipped, RerankSkip{
					JobID: app.JobID, Email: app.Email, Reason: "no questionnaire",
				})
				continue
			}
			return report, fmt.Errorf("reconcile: fetch questionnaire %s: %w", app.JobID, err)
		}

		if !apply {
			report.Planned = append(report.Planned, app.ID)
			j.log.Info("[dry-run] would re-rank",
				zap.String("job_id", app.JobID),
				zap.String("email", app.Email))
			continue
		}

		score, err := j.ranker.RankCandidate(ctx, app.JobID, app.Email, "")
		if err != nil {
			// One failed pair must not abort the batch.
			report.Skipped = append(report.Skipped, RerankSkip{
				JobID: app.JobID, Email: app.Email, Reason: err.Error(),
			})
			j.log.Error("re-rank failed",
				zap.String("job_id", app.JobID),
				zap.String("email", app.Email),
				zap.Error(err))
			continue
		}
		report.Reranked = append(report.Reranked, app.ID)
		j.log.Info("re-ranked candidate",
			zap.String("job_id", app.JobID),
			zap.String("email", app.Email),
			zap.Float64("score", score.Normalized))
	}

	j.log.Info("re-rank pass complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("incomplete", report.Incomplete),
		zap.Int("reranked", len(report.Reranked)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Bool("apply", apply))
	return report, nil
}
