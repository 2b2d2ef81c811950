package ranking

import (
	"context"
	"errors"
	"strings"

	"neunet-backend/internal/storage"
)

// ErrEvaluatorFailed wraps evidence-evaluation transport failures. No
// default score is ever substituted for a failed evaluation.
var ErrEvaluatorFailed = errors.New("ranking: evidence evaluation failed")

// ErrMalformedAssessment means the evaluator answered but the payload is
// unusable: no per-question scores, or no explanation.
var ErrMalformedAssessment = errors.New("ranking: malformed assessment from evaluator")

// Evidence is everything the evaluator sees for one pair.
type Evidence struct {
	JobDescription string
	Questionnaire  []storage.Question
	ResumeText     string
}

// Assessment is the evaluator's structured verdict. Explanation must be
// non-empty for the assessment to count as usable.
type Assessment struct {
	Scores      []QuestionScore `json:"scores"`
	Explanation string          `json:"explanation"`
}

// Evaluator scores resume evidence against a weighted questionnaire. The
// real implementation calls an LLM; it is the only suspension point in a
// ranking computation besides store access.
type Evaluator interface {
	Evaluate(ctx context.Context, ev Evidence) (*Assessment, error)
}

// ValidateAssessment rejects assessments that cannot produce a final
// result: no scores, or a blank explanation.
func ValidateAssessment(a *Assessment) error {
	if a == nil || len(a.Scores) == 0 {
		return ErrMalformedAssessment
	}
	if strings.TrimSpace(a.Explanation) == "" {
		return ErrMalformedAssessment
	}
	return nil
}
