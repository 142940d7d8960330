package security

import (
	"github.com/forest6511/passvault/pkg/vault"
)

// Report is the security assessment of one user's vault.
type Report struct {
	// Overall is the total score (0-100).
	Overall     int              `json:"overall"`
	Components  Components       `json:"components"`
	Total       int              `json:"total"`
	Issues      []Issue          `json:"issues"`
	Duplicates  []DuplicateGroup `json:"duplicates"`
	Suggestions []string         `json:"suggestions"`
}

// Components splits the score into two halves of up to 50 points each.
type Components struct {
	Strength   int `json:"strength"`
	Uniqueness int `json:"uniqueness"`
}

// IssueType identifies the type of security issue.
type IssueType string

const (
	// IssueWeakPassword indicates a password with insufficient strength.
	IssueWeakPassword IssueType = "weak"
	// IssueDuplicatePassword indicates a password reused across secrets.
	IssueDuplicatePassword IssueType = "duplicate"
)

// Severity indicates the urgency of a security issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Issue is a single finding. Duplicate issues carry SecretIDs; weak-password
// issues carry SecretID and Website.
type Issue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	SecretID    int64     `json:"secret_id,omitempty"`
	SecretIDs   []int64   `json:"secret_ids,omitempty"`
	Website     string    `json:"website,omitempty"`
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion,omitempty"`
}

// Analyze scores secrets. limit caps the number of weak and duplicate issues
// listed (0 = unlimited); the score always covers every secret.
func (a *Analyzer) Analyze(secrets []vault.Secret, limit int) *Report {
	r := &Report{
		Total:       len(secrets),
		Issues:      []Issue{},
		Suggestions: []string{},
	}

	var counted, points int
	unique := make(map[string]struct{})
	for _, s := range secrets {
		value := normalizeValue(s.Password)
		if value == "" {
			continue
		}
		counted++
		points += Strength(value).Points()
		unique[a.hash(value)] = struct{}{}
	}

	// Nothing to rate: full score
	if counted == 0 {
		r.Overall = 100
		r.Components = Components{Strength: 50, Uniqueness: 50}
		return r
	}

	r.Components.Strength = points * 2 / counted
	r.Components.Uniqueness = len(unique) * 50 / counted
	r.Overall = r.Components.Strength + r.Components.Uniqueness

	weak := a.FindWeakPasswords(secrets, limit)
	r.Duplicates = a.FindDuplicates(secrets, limit)
	r.Issues = append(r.Issues, weak...)
	for _, d := range r.Duplicates {
		severity := SeverityWarning
		if d.Count > 2 {
			severity = SeverityCritical
		}
		r.Issues = append(r.Issues, Issue{
			Type:        IssueDuplicatePassword,
			Severity:    severity,
			SecretIDs:   d.SecretIDs,
			Description: "Multiple secrets share the same password",
			Suggestion:  "Use unique passwords for each website",
		})
	}

	if len(weak) > 0 {
		r.Suggestions = append(r.Suggestions, "Update weak passwords with stronger alternatives (14+ characters)")
	}
	if len(r.Duplicates) > 0 {
		r.Suggestions = append(r.Suggestions, "Replace duplicate passwords with unique values")
	}
	return r
}
