package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/forest6511/passvault/pkg/crypto"
	"github.com/forest6511/passvault/pkg/vault"
)

// DuplicateGroup represents a group of secrets sharing the same password.
type DuplicateGroup struct {
	SecretIDs []int64  `json:"secret_ids"`
	Websites  []string `json:"websites"`
	Count     int      `json:"count"`
}

// Analyzer inspects a decrypted vault listing. Passwords are compared through
// HMAC-SHA256 under a key that lives only as long as the Analyzer.
type Analyzer struct {
	hmacKey []byte
}

// NewAnalyzer creates an Analyzer with a fresh session key.
func NewAnalyzer() (*Analyzer, error) {
	key, err := crypto.RandomBytes(crypto.KeyLength)
	if err != nil {
		return nil, fmt.Errorf("security: %w", err)
	}
	return &Analyzer{hmacKey: key}, nil
}

// Close wipes the session key.
func (a *Analyzer) Close() {
	crypto.SecureWipe(a.hmacKey)
}

type duplicateEntry struct {
	id      int64
	website string
}

// FindDuplicates groups secrets whose normalized passwords are equal.
// Groups are sorted by size, largest first, then by lowest secret id.
// A limit of zero returns every group.
func (a *Analyzer) FindDuplicates(secrets []vault.Secret, limit int) []DuplicateGroup {
	byHash := make(map[string][]duplicateEntry)
	for _, s := range secrets {
		value := normalizeValue(s.Password)
		if value == "" {
			continue
		}
		h := a.hash(value)
		byHash[h] = append(byHash[h], duplicateEntry{id: s.ID, website: s.Website})
	}

	var groups []DuplicateGroup
	for _, entries := range byHash {
		if len(entries) <= 1 {
			continue
		}
		g := DuplicateGroup{Count: len(entries)}
		for _, e := range entries {
			g.SecretIDs = append(g.SecretIDs, e.id)
			g.Websites = append(g.Websites, e.website)
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].SecretIDs[0] < groups[j].SecretIDs[0]
	})

	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// FindWeakPasswords returns one issue per secret rated PasswordWeak.
func (a *Analyzer) FindWeakPasswords(secrets []vault.Secret, limit int) []Issue {
	var issues []Issue
	for _, s := range secrets {
		if normalizeValue(s.Password) == "" || Strength(s.Password) != PasswordWeak {
			continue
		}
		issues = append(issues, Issue{
			Type:        IssueWeakPassword,
			Severity:    SeverityWarning,
			SecretID:    s.ID,
			Website:     s.Website,
			Description: "Password has insufficient strength (" + formatLength(len([]rune(normalizeValue(s.Password)))) + ")",
			Suggestion:  "Use a longer password (14+ characters)",
		})
	}

	if limit > 0 && len(issues) > limit {
		issues = issues[:limit]
	}
	return issues
}

func (a *Analyzer) hash(value string) string {
	h := hmac.New(sha256.New, a.hmacKey)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

func formatLength(n int) string {
	if n == 1 {
		return "1 character"
	}
	return fmt.Sprintf("%d characters", n)
}
