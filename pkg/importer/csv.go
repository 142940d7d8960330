package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a header-first CSV export. Rows that fail to parse or have
// the wrong column count become warnings. fn receives each good row and a
// lookup by column name; keyFn maps header names to lookup keys.
func readCSV(data []byte, required string, keyFn func(string) string, result *Result, fn func(get func(col string) string)) error {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true // Handle malformed exports
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("importer: failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[keyFn(col)] = i
	}
	if _, ok := colIndex[required]; !ok {
		return fmt.Errorf("importer: missing required column: %s", required)
	}

	rowNum := 1 // header is row 1
	for {
		rowNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: failed to parse: %v", rowNum, err))
			continue
		}
		if len(row) != len(header) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: column count mismatch (expected %d, got %d)", rowNum, len(header), len(row)))
			continue
		}

		fn(func(col string) string {
			if idx, ok := colIndex[col]; ok {
				return row[idx]
			}
			return ""
		})
	}
	return nil
}
