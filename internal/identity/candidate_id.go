// Package identity resolves one canonical candidate identifier per contact
// email across independently written application documents.
package identity

import "strings"

// CandidateID carries the resolved/unresolved distinction explicitly.
// Historic write paths stored the raw email (or nothing) in the
// candidate_id field; such values are never canonical and must be replaced
// with a generated identifier.
type CandidateID struct {
	value    string
	resolved bool
}

// ParseCandidateID classifies a stored candidate_id value. Empty strings
// and email-shaped values are unresolved.
func ParseCandidateID(raw string) CandidateID {
	v := strings.TrimSpace(raw)
	if v == "" || strings.Contains(v, "@") {
		return CandidateID{value: v}
	}
	return CandidateID{value: v, resolved: true}
}

// Resolved reports whether the value is a usable canonical identifier.
func (c CandidateID) Resolved() bool { return c.resolved }

// String returns the raw value, resolved or not.
func (c CandidateID) String() string { return c.value }
