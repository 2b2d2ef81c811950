// Package ghanalysis caches the expensive GitHub profile analysis per
// (candidate email, profile identifier), with a staleness window gating
// recomputation.
package ghanalysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	githubURLRe      = regexp.MustCompile(`https?://(?:www\.)?github\.com/[A-Za-z0-9_.-]+(?:/[A-Za-z0-9_.-]+)?`)
	githubUsernameRe = regexp.MustCompile(`^https?://(?:www\.)?github\.com/([A-Za-z0-9_.-]+)/?`)
)

// ExtractGitHubLink pulls a GitHub profile URL out of resume evidence.
// Structured link fields are checked first (resumes store the key with
// inconsistent casing), then the raw text as a fallback.
func ExtractGitHubLink(resume json.RawMessage, rawText string) string {
	if len(resume) > 0 {
		var doc struct {
			GitHub string `json:"github"`
			Links  map[string]string
		}
		if err := json.Unmarshal(resume, &doc); err == nil {
			if doc.GitHub != "" {
				return doc.GitHub
			}
			for key, v := range doc.Links {
				if strings.EqualFold(key, "github") && v != "" {
					return v
				}
			}
		}
		if m := githubURLRe.FindString(string(resume)); m != "" {
			return m
		}
	}
	return githubURLRe.FindString(rawText)
}

// ExtractUsername pulls the account name out of a GitHub URL. Pages hosts
// (github.io) are not profiles and yield nothing.
func ExtractUsername(githubURL string) string {
	if githubURL == "" || strings.Contains(githubURL, "github.io") {
		return ""
	}
	if !strings.HasPrefix(githubURL, "http") {
		githubURL = "https://" + githubURL
	}
	m := githubUsernameRe.FindStringSubmatch(githubURL)
	if m == nil {
		return ""
	}
	return m[1]
}
