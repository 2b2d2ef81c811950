package reconcile

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// ScoreDrift is one application whose denormalized score copy disagrees
// with the authoritative ranking record.
type ScoreDrift struct {
	JobID     string
	Email     string
	AppScore  float64
	TrueScore float64
}

// SyncReport summarizes one score reconciliation pass.
type SyncReport struct {
	Jobs    int
	Scanned int
	Drifted []ScoreDrift
	Applied int
	// Unranked lists pairs that have a ranking record but no application
	// document. Reported only; nothing can be repaired here.
	Unranked []string
}

// SyncScores reconciles the applications' cached score copies against the
// rankings container for one job. The ranking record always wins.
func (j *Jobs) SyncScores(ctx context.Context, jobID string, apply bool) (*SyncReport, error) {
	report := &SyncReport{}
	if err := j.syncJob(ctx, jobID, apply, report); err != nil {
		return report, err
	}
	report.Jobs = 1
	return report, nil
}

// SyncAllScores runs score reconciliation across every job that has
// applications.
func (j *Jobs) SyncAllScores(ctx context.Context, apply bool) (*SyncReport, error) {
	apps, err := j.store.AllApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: scan applications: %w", err)
	}
	seen := make(map[string]bool)
	var jobIDs []string
	for _, app := range apps {
		if app.JobID != "" && !seen[app.JobID] {
			seen[app.JobID] = true
			jobIDs = append(jobIDs, app.JobID)
		}
	}
	sort.Strings(jobIDs)

	report := &SyncReport{Jobs: len(jobIDs)}
	for _, id := range jobIDs {
		if err := j.syncJob(ctx, id, apply, report); err != nil {
			return report, err
		}
	}
	j.log.Info("score sync complete",
		zap.Int("jobs", report.Jobs),
		zap.Int("scanned", report.Scanned),
		zap.Int("drifted", len(report.Drifted)),
		zap.Int("applied", report.Applied),
		zap.Bool("apply", apply))
	return report, nil
}

func (j *Jobs) syncJob(ctx context.Context, jobID string, apply bool, report *SyncReport) error {
	rankings, err := j.store.FetchRankings(ctx, jobID)
	if err != nil {
		return fmt.Errorf("reconcile: fetch rankings for %s: %w", jobID, err)
	}
	apps, err := j.store.ApplicationsByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("reconcile: fetch applications for %s: %w", jobID, err)
	}

	seen := make(map[string]bool)
	for _, app := range apps {
		report.Scanned++
		seen[app.Email] = true
		r, ok := rankings[app.Email]
		if !ok {
			continue
		}
		if app.RankingScore == r.Score && app.Explanation == r.Explanation {
			continue
		}
		report.Drifted = append(report.Drifted, ScoreDrift{
			JobID:     jobID,
			Email:     app.Email,
			AppScore:  app.RankingScore,
			TrueScore: r.Score,
		})
		if !apply {
			j.log.Info("[dry-run] would sync score",
				zap.String("job_id", jobID),
				zap.String("email", app.Email),
				zap.Float64("from", app.RankingScore),
				zap.Float64("to", r.Score))
			continue
		}
		if err := j.store.UpdateApplicationScore(ctx, jobID, app.Email, r.Score, r.Explanation); err != nil {
			return fmt.Errorf("reconcile: sync score %s/%s: %w", jobID, app.Email, err)
		}
		report.Applied++
	}

	for email := range rankings {
		if !seen[email] {
			report.Unranked = append(report.Unranked,
				fmt.Sprintf("%s/%s", jobID, email))
			j.log.Warn("ranking without application document",
				zap.String("job_id", jobID),
				zap.String("email", email))
		}
	}
	sort.Strings(report.Unranked)
	return nil
}
