package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"neunet-backend/internal/identity"
	"neunet-backend/internal/storage"
)

// UnifyChange is one planned candidate-id rewrite.
type UnifyChange struct {
	Email  string
	DocID  string
	From   string
	To     string
	Minted bool
}

// UnifyReport summarizes one unification pass.
type UnifyReport struct {
	Scanned   int
	Emails    int
	Divergent int
	Changes   []UnifyChange
	Applied   int
}

// UnifyCandidateIDs repairs emails whose application documents disagree on
// the candidate identifier. The most frequent valid identifier wins
// (first encountered in scan order breaks ties); unresolved values, empty
// or email-shaped, are never canonical. With apply false, planned
// rewrites are reported but nothing is written.
func (j *Jobs) UnifyCandidateIDs(ctx context.Context, apply bool) (*UnifyReport, error) {
	apps, err := j.store.AllApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: scan applications: %w", err)
	}

	byEmail := make(map[string][]*storage.Application)
	var emails []string
	for _, app := range apps {
		if app.Email == "" {
			// No email, no identity to unify. The cleanup job flags it.
			continue
		}
		if len(byEmail[app.Email]) == 0 {
			emails = append(emails, app.Email)
		}
		byEmail[app.Email] = append(byEmail[app.Email], app)
	}
	sort.Strings(emails)

	report := &UnifyReport{Scanned: len(apps), Emails: len(emails)}
	for _, email := range emails {
		docs := byEmail[email]
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.CandidateID
		}
		canonical, distinct := identity.PluralityVote(ids)
		if len(distinct) > 1 {
			report.Divergent++
			j.log.Warn("divergent candidate ids",
				zap.String("email", email),
				zap.Strings("candidate_ids", distinct),
				zap.String("canonical", canonical))
		}

		minted := false
		if canonical == "" {
			// No document carries a valid id for this email yet.
			canonical = uuid.NewString()
			minted = true
		}

		for _, d := range docs {
			if d.CandidateID == canonical {
				continue
			}
			change := UnifyChange{
				Email:  email,
				DocID:  d.ID,
				From:   d.CandidateID,
				To:     canonical,
				Minted: minted,
			}
			report.Changes = append(report.Changes, change)
			if !apply {
				j.log.Info("[dry-run] would rewrite candidate id",
					zap.String("doc_id", d.ID),
					zap.String("from", d.CandidateID),
					zap.String("to", canonical))
				continue
			}
			if err := j.store.UpdateCandidateID(ctx, d.ID, canonical); err != nil {
				return report, fmt.Errorf("reconcile: rewrite %s: %w", d.ID, err)
			}
			report.Applied++
		}
	}

	j.log.Info("unification pass complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("divergent_emails", report.Divergent),
		zap.Int("planned", len(report.Changes)),
		zap.Int("applied", report.Applied),
		zap.Bool("apply", apply))
	return report, nil
}
