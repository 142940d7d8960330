package importer

import (
	"encoding/json"
	"fmt"
)

// BitwardenParser parses Bitwarden JSON export files. Only login items
// carry website credentials; notes, cards and identities are skipped.
type BitwardenParser struct{}

// Bitwarden item types.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

// bitwardenExport represents the top-level Bitwarden export structure.
type bitwardenExport struct {
	Encrypted bool            `json:"encrypted"`
	Items     []bitwardenItem `json:"items"`
}

// bitwardenItem represents a Bitwarden vault item.
type bitwardenItem struct {
	Type  int             `json:"type"`
	Name  string          `json:"name"`
	Login *bitwardenLogin `json:"login"`
}

// bitwardenLogin represents Bitwarden login data.
type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
}

// bitwardenURI represents a Bitwarden URI entry.
type bitwardenURI struct {
	URI string `json:"uri"`
}

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden JSON data.
func (p *BitwardenParser) Parse(data []byte) (*Result, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("importer: failed to parse Bitwarden JSON: %w", err)
	}
	if export.Encrypted {
		return nil, fmt.Errorf("importer: encrypted Bitwarden exports are not supported, export as unencrypted JSON")
	}

	result := newResult()
	for i := range export.Items {
		p.parseItem(result, i, &export.Items[i])
	}

	Deduplicate(result)
	return result, nil
}

func (p *BitwardenParser) parseItem(result *Result, i int, item *bitwardenItem) {
	switch item.Type {
	case bitwardenTypeLogin:
	case bitwardenTypeSecureNote:
		result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: "secure note"})
		return
	case bitwardenTypeCard:
		result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: "card"})
		return
	case bitwardenTypeIdentity:
		result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: "identity"})
		return
	default:
		result.Warnings = append(result.Warnings, fmt.Sprintf("item %d (%s): unsupported item type: %d", i+1, item.Name, item.Type))
		return
	}

	if item.Login == nil {
		result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: "no login data"})
		return
	}

	// Primary URI becomes the website; the others are dropped with a note.
	var website string
	for j, u := range item.Login.URIs {
		if u.URI == "" {
			continue
		}
		if website == "" {
			website = u.URI
			continue
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("item %d (%s): additional uri %d ignored", i+1, item.Name, j+1))
	}

	result.add(item.Name, website, item.Login.Username, item.Login.Password)
}
