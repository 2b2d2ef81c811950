package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"neunet-backend/internal/storage"
)

// ErrMissingEmail means no identifier can be derived at all. The caller
// must supply more information; resolution never guesses.
var ErrMissingEmail = errors.New("identity: email is required")

// ApplicationSource is the slice of the document store the resolver needs.
type ApplicationSource interface {
	ApplicationsByEmail(ctx context.Context, email string) ([]*storage.Application, error)
}

// Resolution is the outcome of resolving one email.
type Resolution struct {
	// CandidateID is the canonical identifier to use for all of this
	// email's documents.
	CandidateID string
	// Minted is true when no prior valid identifier existed and a fresh
	// one was generated.
	Minted bool
	// Divergent lists every distinct valid identifier seen when the scan
	// found more than one. The resolver reports the set; rewriting the
	// documents is the reconciliation job's responsibility.
	Divergent []string
}

type Resolver struct {
	apps ApplicationSource
	log  *zap.Logger
}

func NewResolver(apps ApplicationSource, log *zap.Logger) *Resolver {
	return &Resolver{apps: apps, log: log.Named("identity")}
}

// Resolve returns the canonical candidate identifier for an email.
//
// An explicit, already-valid identifier wins. Otherwise existing documents
// for the email are scanned and the most common valid identifier is reused
// (first-seen wins ties); with no valid identifier on record a fresh UUID
// is minted. Resolving twice with no intervening writes returns the same
// identifier.
func (r *Resolver) Resolve(ctx context.Context, email, explicit string) (*Resolution, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrMissingEmail
	}

	if cid := ParseCandidateID(explicit); cid.Resolved() {
		return &Resolution{CandidateID: cid.String()}, nil
	}

	apps, err := r.apps.ApplicationsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("identity: scan applications for %s: %w", email, err)
	}

	canonical, distinct := PluralityVote(candidateIDs(apps))
	if canonical == "" {
		fresh := uuid.NewString()
		r.log.Info("minted candidate id",
			zap.String("email", email),
			zap.String("candidate_id", fresh))
		return &Resolution{CandidateID: fresh, Minted: true}, nil
	}

	res := &Resolution{CandidateID: canonical}
	if len(distinct) > 1 {
		// Consistency warning: the documents disagree. Reported, not
		// silently rewritten here.
		res.Divergent = distinct
		r.log.Warn("multiple candidate ids for one email",
			zap.String("email", email),
			zap.Strings("candidate_ids", distinct),
			zap.String("canonical", canonical))
	}
	return res, nil
}

// PluralityVote picks the most frequent valid identifier from raw stored
// values. Ties break toward the identifier encountered first. The second
// return value lists the distinct valid identifiers in scan order.
func PluralityVote(raw []string) (string, []string) {
	counts := make(map[string]int)
	var order []string
	for _, v := range raw {
		cid := ParseCandidateID(v)
		if !cid.Resolved() {
			continue
		}
		if counts[cid.String()] == 0 {
			order = append(order, cid.String())
		}
		counts[cid.String()]++
	}
	best := ""
	for _, id := range order {
		if best == "" || counts[id] > counts[best] {
			best = id
		}
	}
	return best, order
}

func candidateIDs(apps []*storage.Application) []string {
	ids := make([]string, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.CandidateID)
	}
	return ids
}
