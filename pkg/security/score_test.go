package security

import (
	"testing"

	"github.com/forest6511/passvault/pkg/vault"
)

func TestAnalyze_Empty(t *testing.T) {
	a := newTestAnalyzer(t)

	r := a.Analyze(nil, 0)
	if r.Overall != 100 {
		t.Errorf("Overall = %d, want 100", r.Overall)
	}
	if r.Components.Strength != 50 || r.Components.Uniqueness != 50 {
		t.Errorf("Components = %+v", r.Components)
	}
	if len(r.Issues) != 0 || len(r.Suggestions) != 0 {
		t.Errorf("empty vault produced issues %v / suggestions %v", r.Issues, r.Suggestions)
	}
}

func TestAnalyze_AllStrongAndUnique(t *testing.T) {
	a := newTestAnalyzer(t)

	secrets := []vault.Secret{
		{ID: 1, Password: "a-very-long-password-number-one"},
		{ID: 2, Password: "a-very-long-password-number-two"},
	}
	r := a.Analyze(secrets, 0)
	if r.Overall != 100 {
		t.Errorf("Overall = %d, want 100", r.Overall)
	}
	if r.Total != 2 {
		t.Errorf("Total = %d, want 2", r.Total)
	}
}

func TestAnalyze_Mixed(t *testing.T) {
	a := newTestAnalyzer(t)

	r := a.Analyze(testSecrets(), 0)

	// Good, Strong, Good, Weak, Weak, Good = 17+25+17+0+0+17 = 76
	if want := 76 * 2 / 6; r.Components.Strength != want {
		t.Errorf("Strength = %d, want %d", r.Components.Strength, want)
	}
	// 3 distinct passwords across 6 secrets
	if want := 3 * 50 / 6; r.Components.Uniqueness != want {
		t.Errorf("Uniqueness = %d, want %d", r.Components.Uniqueness, want)
	}
	if r.Overall != r.Components.Strength+r.Components.Uniqueness {
		t.Errorf("Overall = %d, want sum of components", r.Overall)
	}

	var weak, dup int
	for _, issue := range r.Issues {
		switch issue.Type {
		case IssueWeakPassword:
			weak++
		case IssueDuplicatePassword:
			dup++
			if len(issue.SecretIDs) == 3 && issue.Severity != SeverityCritical {
				t.Errorf("three-way reuse severity = %q, want critical", issue.Severity)
			}
		}
	}
	if weak != 2 || dup != 2 {
		t.Errorf("weak = %d, dup = %d, want 2 and 2", weak, dup)
	}
	if len(r.Duplicates) != 2 {
		t.Errorf("Duplicates = %d groups, want 2", len(r.Duplicates))
	}
	if len(r.Suggestions) != 2 {
		t.Errorf("Suggestions = %v", r.Suggestions)
	}
}

func TestAnalyze_LimitKeepsScore(t *testing.T) {
	a := newTestAnalyzer(t)

	full := a.Analyze(testSecrets(), 0)
	limited := a.Analyze(testSecrets(), 1)
	if full.Overall != limited.Overall {
		t.Errorf("limit changed the score: %d vs %d", full.Overall, limited.Overall)
	}
	if len(limited.Issues) != 2 {
		t.Errorf("limited Issues = %d, want one weak and one duplicate", len(limited.Issues))
	}
}
