package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"neunet-backend/internal/storage"
)

// GenerateQuestionnaire produces a weighted questionnaire for a job that
// lacks one. Used by the backfill job; live jobs get their questionnaire
// at posting time.
func (e *LLMEvaluator) GenerateQuestionnaire(ctx context.Context, jobID string) (*storage.Questionnaire, error) {
	if e.provider == ProviderNone || e.provider == "" {
		return nil, fmt.Errorf("%w: provider not configured", ErrEvaluatorFailed)
	}

	prompt := fmt.Sprintf(`You are an expert technical recruiter. Create a screening questionnaire for job posting %s.

Return ONLY valid JSON, no markdown:
{
  "questions": [
    {"question": "...", "weight": 2}
  ]
}

**Important:**
- 5 to 8 questions covering required skills, experience depth, and role fit
- Weights between 1 and 3, higher for must-have criteria
- Every question must be answerable from a resume alone
`, jobID)

	response, err := e.call(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluatorFailed, err)
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, ErrMalformedAssessment
	}

	var payload struct {
		Questions []storage.Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAssessment, err)
	}

	var questions []storage.Question
	for _, q := range payload.Questions {
		if strings.TrimSpace(q.Question) == "" || q.Weight <= 0 {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, ErrMalformedAssessment
	}

	return &storage.Questionnaire{JobID: jobID, Questions: questions}, nil
}
