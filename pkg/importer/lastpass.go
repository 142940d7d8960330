package importer

import (
	"strings"
)

// LastPassParser parses LastPass CSV export files:
//
//	url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

// LastPass CSV column names (header-based parsing).
const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColName     = "name"

	// LastPass stores secure notes with this placeholder URL.
	lpSecureNoteURL = "http://sn"
)

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data.
func (p *LastPassParser) Parse(data []byte) (*Result, error) {
	result := newResult()

	err := readCSV(data, lpColName, strings.ToLower, result, func(get func(string) string) {
		name := DecodeHTMLEntities(get(lpColName))
		url := DecodeHTMLEntities(get(lpColURL))

		if strings.TrimSpace(url) == lpSecureNoteURL {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: name, Reason: "secure note"})
			return
		}

		result.add(name, url,
			DecodeHTMLEntities(get(lpColUsername)),
			DecodeHTMLEntities(get(lpColPassword)))
	})
	if err != nil {
		return nil, err
	}

	Deduplicate(result)
	return result, nil
}
