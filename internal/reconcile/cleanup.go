package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Incomplete flags one application document lacking a required linkage
// field. Detection and deletion are deliberately separate steps.
type Incomplete struct {
	DocID   string
	JobID   string
	Email   string
	Reasons []string
}

// DetectIncomplete scans for documents missing a job id, a candidate id,
// or the resume artifact reference that marks a completed submission. It
// only reports; nothing is removed.
func (j *Jobs) DetectIncomplete(ctx context.Context) ([]Incomplete, error) {
	apps, err := j.store.AllApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: scan applications: %w", err)
	}

	var flagged []Incomplete
	for _, app := range apps {
		var reasons []string
		if app.JobID == "" {
			reasons = append(reasons, "missing job id")
		}
		if app.CandidateID == "" {
			reasons = append(reasons, "missing candidate id")
		}
		if app.ResumeBlobName == "" {
			reasons = append(reasons, "missing resume artifact reference")
		}
		if len(reasons) == 0 {
			continue
		}
		flagged = append(flagged, Incomplete{
			DocID:   app.ID,
			JobID:   app.JobID,
			Email:   app.Email,
			Reasons: reasons,
		})
		j.log.Warn("incomplete application",
			zap.String("doc_id", app.ID),
			zap.Strings("reasons", reasons))
	}
	return flagged, nil
}

// DeleteIncomplete removes previously detected documents. This is the
// explicit, separate cleanup step; callers pass the exact detection
// result they reviewed.
func (j *Jobs) DeleteIncomplete(ctx context.Context, flagged []Incomplete) (int, error) {
	deleted := 0
	for _, f := range flagged {
		if err := j.store.DeleteApplication(ctx, f.DocID); err != nil {
			return deleted, fmt.Errorf("reconcile: delete %s: %w", f.DocID, err)
		}
		deleted++
		j.log.Info("deleted incomplete application", zap.String("doc_id", f.DocID))
	}
	return deleted, nil
}
