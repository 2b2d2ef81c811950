// Package ranking computes the normalized fitness score for one
// (job, candidate) pair from questionnaire weights and per-question raw
// scores produced by the evidence evaluator.
package ranking

import (
	"errors"
	"math"
)

// ErrNoScorableCriteria means no question survived validation with a
// positive weight, so no score can be computed. Callers must not persist a
// zero score in its place.
var ErrNoScorableCriteria = errors.New("ranking: no scorable criteria")

// RawScoreMax is the upper bound of a per-question raw score.
const RawScoreMax = 5.0

// QuestionScore is one evaluated questionnaire entry. Raw comes from the
// external evaluator and is untrusted numeric input.
type QuestionScore struct {
	Question string  `json:"question"`
	Weight   float64 `json:"weight"`
	Raw      float64 `json:"score"`
}

// Score is the deterministic result of one computation.
type Score struct {
	// Normalized is CandidateTotal / MaxTotal, always in [0, 1].
	Normalized     float64
	CandidateTotal float64
	MaxTotal       float64
	// Valid counts the questions that contributed to both totals.
	Valid int
	// Excluded lists questions rejected by validation. They are removed
	// from numerator and denominator alike, never clamped.
	Excluded []QuestionScore
}

// Compute validates each question and normalizes the weighted total.
// A raw score outside [0, 5] or a negative or non-finite weight excludes
// the question entirely. Identical input always produces an identical
// result.
func Compute(scores []QuestionScore) (*Score, error) {
	result := &Score{}
	for _, q := range scores {
		if !valid(q) {
			result.Excluded = append(result.Excluded, q)
			continue
		}
		result.CandidateTotal += q.Raw * q.Weight
		result.MaxTotal += RawScoreMax * q.Weight
		result.Valid++
	}
	if result.MaxTotal == 0 {
		return nil, ErrNoScorableCriteria
	}
	result.Normalized = result.CandidateTotal / result.MaxTotal
	return result, nil
}

func valid(q QuestionScore) bool {
	if math.IsNaN(q.Raw) || q.Raw < 0 || q.Raw > RawScoreMax {
		return false
	}
	if math.IsNaN(q.Weight) || math.IsInf(q.Weight, 0) || q.Weight < 0 {
		return false
	}
	return true
}

// DisplayPercent converts a stored score to the 0-100 presentation scale.
// The canonical internal representation is the 0-1 fraction; records
// written before that convention may already hold a 0-100 value, which is
// passed through unchanged.
func DisplayPercent(stored float64) float64 {
	if stored > 1 {
		return stored
	}
	return stored * 100
}
