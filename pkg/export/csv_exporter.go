package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM prefixes every CSV export.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	comma rune
}

// NewCSVExporter builds a CSV exporter. A zero comma defaults to ';'.
func NewCSVExporter(comma rune) *CSVExporter {
	if comma == 0 {
		comma = ';'
	}
	return &CSVExporter{comma: comma}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := bytes.NewBuffer(append([]byte{}, utf8BOM...))
	writer := csv.NewWriter(buf)
	writer.Comma = e.comma
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
