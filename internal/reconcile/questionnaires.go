package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// QuestionnaireReport summarizes one questionnaire backfill pass.
type QuestionnaireReport struct {
	Missing   []string
	Generated []string
	Failed    []string
}

// BackfillQuestionnaires generates and stores a questionnaire for every
// job that has applications but no questionnaire on record. Generation
// replaces nothing: only jobs with no questionnaire at all are touched, so
// the pass is idempotent.
func (j *Jobs) BackfillQuestionnaires(ctx context.Context, apply bool) (*QuestionnaireReport, error) {
	missing, err := j.store.JobsWithoutQuestionnaire(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list jobs without questionnaire: %w", err)
	}

	report := &QuestionnaireReport{Missing: missing}
	if !apply {
		for _, jobID := range missing {
			j.log.Info("[dry-run] would generate questionnaire", zap.String("job_id", jobID))
		}
		return report, nil
	}
	if j.generator == nil {
		return nil, errors.New("reconcile: no questionnaire generator configured")
	}

	for _, jobID := range missing {
		q, err := j.generator.GenerateQuestionnaire(ctx, jobID)
		if err != nil {
			report.Failed = append(report.Failed, jobID)
			j.log.Error("questionnaire generation failed",
				zap.String("job_id", jobID),
				zap.Error(err))
			continue
		}
		if err := j.store.StoreQuestionnaire(ctx, q); err != nil {
			report.Failed = append(report.Failed, jobID)
			j.log.Error("questionnaire store failed",
				zap.String("job_id", jobID),
				zap.Error(err))
			continue
		}
		report.Generated = append(report.Generated, jobID)
	}

	j.log.Info("questionnaire backfill complete",
		zap.Int("missing", len(report.Missing)),
		zap.Int("generated", len(report.Generated)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}
