package ghanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ServiceAnalyzer delegates profile analysis to an external analysis
// service. The service owns the GitHub API access and the summarization
// model; this client only transports the request.
type ServiceAnalyzer struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewServiceAnalyzer(baseURL string, log *zap.Logger) *ServiceAnalyzer {
	return &ServiceAnalyzer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		log:     log.Named("analyzer"),
	}
}

func (a *ServiceAnalyzer) Analyze(ctx context.Context, username, email string) (json.RawMessage, error) {
	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/analyze", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis service error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("analysis service returned invalid JSON for %s", username)
	}
	return json.RawMessage(body), nil
}
