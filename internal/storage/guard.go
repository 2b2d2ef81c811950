package storage

import (
	"fmt"
	"strings"
)

// Every value that reaches SQL goes through placeholder binding; the one
// exception is identifier position (ORDER BY column names), which cannot be
// parameterized. ValidateFieldName keeps an allowlist for that surface,
// with a keyword denylist as a second layer.

var allowedFields = map[string]string{
	"email":        "email",
	"job_id":       "job_id",
	"candidate_id": "candidate_id",
	"status":       "status",
	"ranking":      "ranking",
	"applied_at":   "applied_at",
	"updated_at":   "updated_at",
}

var deniedKeywords = []string{
	"select", "insert", "update", "delete", "drop", "alter", "create",
	"union", "grant", "revoke", "truncate", "exec", ";", "--", "/*",
}

// ValidateFieldName maps a caller-supplied field name to a known column, or
// fails. The exact-match allowlist decides; the keyword scan only shapes
// the error for rejected input. Allowlisted names must never hit the
// keyword scan: "updated_at" contains "update".
func ValidateFieldName(name string) (string, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if col, ok := allowedFields[needle]; ok {
		return col, nil
	}
	for _, kw := range deniedKeywords {
		if strings.Contains(needle, kw) {
			return "", fmt.Errorf("storage: field name %q contains disallowed keyword", name)
		}
	}
	return "", fmt.Errorf("storage: field name %q is not filterable", name)
}
