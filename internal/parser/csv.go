package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVExtractor renders each data row as "header: value" pairs, one row per
// line, so column names are searchable alongside values.
type CSVExtractor struct{}

func (p *CSVExtractor) Extract(r io.Reader) (string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	headers := records[0]
	var sb strings.Builder
	sb.WriteString(strings.Join(headers, ", "))
	for _, row := range records[1:] {
		sb.WriteString("\n")
		for j, cell := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			if j < len(headers) {
				sb.WriteString(headers[j] + ": ")
			}
			sb.WriteString(cell)
		}
	}
	return sb.String(), nil
}
