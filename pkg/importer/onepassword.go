package importer

// OnePasswordParser parses 1Password CSV export files:
//
//	Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

// 1Password CSV column names (header-based parsing).
const (
	op1ColTitle    = "Title"
	op1ColWebsite  = "Website"
	op1ColUsername = "Username"
	op1ColPassword = "Password"
	op1ColArchived = "Archived"
)

// Source returns the source type for this parser.
func (p *OnePasswordParser) Source() Source {
	return Source1Password
}

// Parse parses 1Password CSV data. Archived items are imported with a
// warning.
func (p *OnePasswordParser) Parse(data []byte) (*Result, error) {
	result := newResult()

	identity := func(s string) string { return s }
	err := readCSV(data, op1ColTitle, identity, result, func(get func(string) string) {
		title := get(op1ColTitle)
		if v := NormalizeValue(get(op1ColArchived)); v == "true" || v == "1" {
			result.Warnings = append(result.Warnings, "archived item imported: "+NormalizeValue(title))
		}
		result.add(title, get(op1ColWebsite), get(op1ColUsername), get(op1ColPassword))
	})
	if err != nil {
		return nil, err
	}

	Deduplicate(result)
	return result, nil
}
