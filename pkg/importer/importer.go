// Package importer turns exports from other password managers, and
// databases written by the original Windows program, into credentials that
// can be stored with vault.Store.
//
// Supported sources: 1Password CSV, Bitwarden JSON, LastPass CSV and the
// legacy UserDatabase.db SQLite file.
package importer

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/passvault/pkg/vault"
)

// Source represents the source password manager format.
type Source string

const (
	Source1Password Source = "1password"
	SourceBitwarden Source = "bitwarden"
	SourceLastPass  Source = "lastpass"
	SourceLegacy    Source = "legacy"
)

// Record is one website login read from an export.
type Record struct {
	// Name is the item title in the source, if any.
	Name     string
	Website  string
	Username string
	Password string
}

// Entry converts r for vault.Store.AddSecrets.
func (r Record) Entry() vault.Entry {
	return vault.Entry{Website: r.Website, Username: r.Username, Password: r.Password}
}

// Entries converts records for vault.Store.AddSecrets.
func Entries(records []Record) []vault.Entry {
	out := make([]vault.Entry, 0, len(records))
	for _, r := range records {
		out = append(out, r.Entry())
	}
	return out
}

// Result contains the results of a parse.
type Result struct {
	// Records are the importable logins.
	Records []Record

	// Warnings are non-fatal issues encountered during parsing.
	Warnings []string

	// Skipped are items that were skipped with reasons.
	Skipped []SkippedItem
}

// SkippedItem represents an item that was skipped during import.
type SkippedItem struct {
	OriginalName string
	Reason       string
}

func newResult() *Result {
	return &Result{
		Records:  make([]Record, 0),
		Warnings: make([]string, 0),
		Skipped:  make([]SkippedItem, 0),
	}
}

// add validates and normalizes a login, then appends it or records why it
// was skipped.
func (r *Result) add(name, website, username, password string) {
	name = NormalizeValue(name)
	website = NormalizeValue(website)
	username = NormalizeValue(username)

	// the website column is a free-text label, so a titled item without URL
	// still has one
	if website == "" {
		website = name
	}

	label := name
	if label == "" {
		label = website
	}

	switch {
	case website == "":
		r.Skipped = append(r.Skipped, SkippedItem{OriginalName: label, Reason: "no website or name"})
	case username == "":
		r.Skipped = append(r.Skipped, SkippedItem{OriginalName: label, Reason: "no username"})
	case password == "":
		r.Skipped = append(r.Skipped, SkippedItem{OriginalName: label, Reason: "no password"})
	default:
		r.Records = append(r.Records, Record{Name: name, Website: website, Username: username, Password: password})
	}
}

// Parser is the interface for export format parsers.
type Parser interface {
	// Parse parses the input data and returns importable records.
	Parse(data []byte) (*Result, error)

	// Source returns the source type for this parser.
	Source() Source
}

// Deduplicate drops records that repeat an earlier website, username and
// password triple. It returns the number of records removed.
func Deduplicate(result *Result) int {
	type key struct{ website, username, password string }
	seen := make(map[key]bool, len(result.Records))

	kept := result.Records[:0]
	removed := 0
	for _, rec := range result.Records {
		k := key{strings.ToLower(rec.Website), rec.Username, rec.Password}
		if seen[k] {
			removed++
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: rec.Website, Reason: "duplicate entry"})
			continue
		}
		seen[k] = true
		kept = append(kept, rec)
	}
	result.Records = kept
	return removed
}

// DecodeHTMLEntities decodes common HTML entities found in LastPass exports.
func DecodeHTMLEntities(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&apos;", "'")
	// last, so "&amp;lt;" decodes to "&lt;" and not "<"
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// NormalizeValue trims whitespace and normalizes Unicode to NFC. It is
// applied to names, websites and usernames, never to passwords.
func NormalizeValue(s string) string {
	s = strings.TrimSpace(s)
	s = norm.NFC.String(s)
	return s
}

// IsEmptyOrWhitespace checks if a string is empty or contains only whitespace.
func IsEmptyOrWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// GetParser returns a parser for the given file format. The legacy source
// is a database, not an export; use ReadLegacy for it.
func GetParser(source Source) (Parser, error) {
	switch source {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	default:
		return nil, fmt.Errorf("importer: unsupported import source: %s", source)
	}
}

// ValidSources returns a list of valid source names.
func ValidSources() []string {
	return []string{
		string(Source1Password),
		string(SourceBitwarden),
		string(SourceLastPass),
		string(SourceLegacy),
	}
}
