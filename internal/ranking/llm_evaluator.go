package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
	ProviderNone   Provider = "none"
)

const (
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	groqEndpoint   = "https://api.groq.com/openai/v1/chat/completions"
)

// LLMEvaluator scores resume evidence against a questionnaire through a
// chat-completions API.
type LLMEvaluator struct {
	provider Provider
	apiKey   string
	model    string
	client   *http.Client
	log      *zap.Logger
}

func NewLLMEvaluator(provider, apiKey, model string, log *zap.Logger) *LLMEvaluator {
	return &LLMEvaluator{
		provider: Provider(provider),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 120 * time.Second},
		log:      log.Named("evaluator"),
	}
}

// Evaluate asks the model for per-question raw scores plus an explanation.
// Transport failures and timeouts surface as ErrEvaluatorFailed; a reply
// without scores or explanation surfaces as ErrMalformedAssessment.
func (e *LLMEvaluator) Evaluate(ctx context.Context, ev Evidence) (*Assessment, error) {
	if e.provider == ProviderNone || e.provider == "" {
		return nil, fmt.Errorf("%w: provider not configured", ErrEvaluatorFailed)
	}

	prompt := e.buildPrompt(ev)

	response, err := e.call(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluatorFailed, err)
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		e.log.Warn("no JSON object in evaluator response")
		return nil, ErrMalformedAssessment
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(jsonStr), &assessment); err != nil {
		e.log.Warn("failed to parse evaluator response", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrMalformedAssessment, err)
	}
	if err := ValidateAssessment(&assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (e *LLMEvaluator) buildPrompt(ev Evidence) string {
	prompt := fmt.Sprintf(`You are an expert technical recruiter. Score this candidate's resume against the job questionnaire.

**Job Description:**
%s

**Questionnaire (question, weight):**
`, ev.JobDescription)

	for i, q := range ev.Questionnaire {
		prompt += fmt.Sprintf("%d. %s (weight: %g)\n", i+1, q.Question, q.Weight)
	}

	prompt += fmt.Sprintf(`
**Resume:**
"""
%s
"""

For every question assign a raw score between 0 and 5 based only on evidence in the resume. Keep the given weight unchanged.

Return ONLY valid JSON, no markdown:
{
  "scores": [
    {"question": "...", "weight": 2, "score": 4}
  ],
  "explanation": "Two or three sentences on the candidate's overall fit, citing resume evidence."
}

**Important:**
- Score ALL questions in the list
- Be objective and evidence-based
- The explanation must never be empty
`, ev.ResumeText)

	return prompt
}

func (e *LLMEvaluator) call(ctx context.Context, prompt string) (string, error) {
	var endpoint string
	switch e.provider {
	case ProviderOpenAI:
		endpoint = openAIEndpoint
	case ProviderGroq:
		endpoint = groqEndpoint
	default:
		return "", fmt.Errorf("unknown provider: %s", e.provider)
	}

	reqBody := map[string]interface{}{
		"model": e.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "You are a resume evaluator. Return only valid JSON.",
			},
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature": 0.1,
		"response_format": map[string]string{
			"type": "json_object",
		},
	}

	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s API error: %d", e.provider, resp.StatusCode)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("%s error: %s", e.provider, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", e.provider)
	}
	return result.Choices[0].Message.Content, nil
}

// extractJSON finds the first balanced JSON object in text. Handles
// models that wrap the payload in markdown or prose.
func extractJSON(text string) string {
	start := -1
	end := -1
	braceCount := 0

	for i, char := range text {
		if char == '{' {
			if start == -1 {
				start = i
			}
			braceCount++
		} else if char == '}' {
			braceCount--
			if braceCount == 0 && start != -1 {
				end = i + 1
				break
			}
		}
	}

	if start != -1 && end != -1 {
		return text[start:end]
	}
	return ""
}
