package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"neunet-backend/internal/ghanalysis"
)

// AnalysisReport summarizes one end-of-day analysis pass.
type AnalysisReport struct {
	Scanned   int
	WithLinks int
	Analyzed  int
	Skipped   int
	Failed    int
}

// RefreshAnalyses scans every application, extracts GitHub profile links
// from resume evidence, and refreshes the analysis cache for candidates
// whose entry is missing or past the staleness window. Each email is
// processed once per pass; fresh entries are left alone, which makes the
// pass idempotent within one window.
func (j *Jobs) RefreshAnalyses(ctx context.Context, apply bool) (*AnalysisReport, error) {
	if j.analyses == nil {
		return nil, errors.New("reconcile: no analysis cache configured")
	}

	apps, err := j.store.AllApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: scan applications: %w", err)
	}

	report := &AnalysisReport{Scanned: len(apps)}
	processed := make(map[string]bool)
	for _, app := range apps {
		if app.Email == "" || processed[app.Email] {
			continue
		}

		link := ghanalysis.ExtractGitHubLink(app.Resume, app.ResumeText)
		username := ghanalysis.ExtractUsername(link)
		if username == "" {
			continue
		}
		processed[app.Email] = true
		report.WithLinks++

		if !apply {
			j.log.Info("[dry-run] would check analysis",
				zap.String("email", app.Email),
				zap.String("github_identifier", username))
			continue
		}

		_, computed, err := j.analyses.Refresh(ctx, app.Email, username)
		if err != nil {
			report.Failed++
			j.log.Error("analysis refresh failed",
				zap.String("email", app.Email),
				zap.String("github_identifier", username),
				zap.Error(err))
			continue
		}
		if computed {
			report.Analyzed++
		} else {
			report.Skipped++
		}
	}

	j.log.Info("analysis pass complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("with_links", report.WithLinks),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Bool("apply", apply))
	return report, nil
}
