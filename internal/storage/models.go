package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the application lifecycle state. Input that does not match a
// known state maps to StatusUnknown instead of being rejected, so bad
// writes stay auditable.
type Status string

const (
	StatusApplied            Status = "Applied"
	StatusUnderReview        Status = "Application Under Review"
	StatusShortlisted        Status = "Shortlisted"
	StatusInterviewInvite    Status = "Interview Invite Sent"
	StatusInterviewScheduled Status = "Interview Scheduled"
	StatusFeedbackReview     Status = "Interview Feedback Under Review"
	StatusOfferExtended      Status = "Offer Extended"
	StatusRejected           Status = "Rejected"
	StatusWithdrawn          Status = "Withdrawn"
	StatusUnknown            Status = "Unknown"
)

var validStatuses = []Status{
	StatusApplied,
	StatusUnderReview,
	StatusShortlisted,
	StatusInterviewInvite,
	StatusInterviewScheduled,
	StatusFeedbackReview,
	StatusOfferExtended,
	StatusRejected,
	StatusWithdrawn,
}

// ParseStatus normalizes a status string case-insensitively. Unrecognized
// input becomes StatusUnknown.
func ParseStatus(s string) Status {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, v := range validStatuses {
		if strings.ToLower(string(v)) == needle {
			return v
		}
	}
	return StatusUnknown
}

// Application is one candidate application document. One record exists per
// (job, email) pair; the document id is the composite "<job_id>_<email>".
// RankingScore and Explanation are a denormalized copy of the Ranking
// record and may drift; the rankings container stays authoritative.
type Application struct {
	ID             string          `json:"id"`
	JobID          string          `json:"job_id"`
	Email          string          `json:"email"`
	CandidateID    string          `json:"candidate_id"`
	Status         Status          `json:"status"`
	Resume         json.RawMessage `json:"resume,omitempty"`
	ResumeText     string          `json:"resume_text,omitempty"`
	ResumeBlobName string          `json:"resume_blob_name,omitempty"`
	RankingScore   float64         `json:"ranking"`
	Explanation    string          `json:"explanation,omitempty"`
	AppliedAt      time.Time       `json:"applied_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ApplicationID builds the composite document id used by both the
// applications and rankings containers.
func ApplicationID(jobID, email string) string {
	return fmt.Sprintf("%s_%s", jobID, email)
}

// Ranking is the canonical (score, explanation) record for one
// (job, email) pair. Score is always stored as a 0-1 fraction.
type Ranking struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	Email       string    `json:"candidate_email"`
	Score       float64   `json:"ranking"`
	Explanation string    `json:"explanation"`
	RankedAt    time.Time `json:"ranked_at"`
}

// Question is one weighted questionnaire entry.
type Question struct {
	Question string  `json:"question"`
	Weight   float64 `json:"weight"`
}

// Questionnaire is the per-job ordered question set. Regeneration replaces
// the whole document, never individual questions.
type Questionnaire struct {
	ID        string     `json:"id"`
	JobID     string     `json:"job_id"`
	Questions []Question `json:"questionnaire"`
	CreatedAt time.Time  `json:"created_at"`
}

// AnalysisEntry is one cached GitHub profile analysis, keyed by
// (candidate email, profile identifier). A candidate can map to several
// profile identifiers, so the identifier is part of the key.
type AnalysisEntry struct {
	ID         string          `json:"id"`
	Email      string          `json:"candidate_email"`
	ExternalID string          `json:"github_identifier"`
	Result     json.RawMessage `json:"result"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AnalysisID builds the analysis document id.
func AnalysisID(email, externalID string) string {
	return fmt.Sprintf("analysis_%s_%s", email, externalID)
}
