package formatters

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/airframesio/musicbrainz-exporter/cmd/records"
)

// CSVFormatter writes comma separated lines with minimal quoting and "\n"
// line endings. List fields are rendered as JSON arrays, null scalars as
// empty strings.
type CSVFormatter struct {
	Comma rune
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{Comma: ','}
}

// Format converts a batch of tuples to CSV
func (f *CSVFormatter) Format(header []string, batch []records.Tuple, includeHeader bool) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	writer.Comma = f.Comma
	writer.UseCRLF = false

	if includeHeader {
		if err := writer.Write(header); err != nil {
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	record := make([]string, len(header))
	for i, tuple := range batch {
		if len(tuple) != len(header) {
			return nil, fmt.Errorf("%w: record %d has %d fields, header has %d", ErrEncode, i, len(tuple), len(header))
		}
		for j, field := range tuple {
			cell, err := RenderField(field)
			if err != nil {
				return nil, fmt.Errorf("record %d, column %s: %w", i, header[j], err)
			}
			record[j] = cell
		}

		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buffer.Bytes(), nil
}

// Extension returns the file extension for CSV files
func (f *CSVFormatter) Extension() string {
	return ".csv"
}

// MIMEType returns the MIME type for CSV
func (f *CSVFormatter) MIMEType() string {
	return "text/csv"
}

// RenderField renders one field as a CSV cell. Lists become JSON arrays so the
// textual form is identical across flushes; an empty list renders as [].
func RenderField(field records.Field) (string, error) {
	for _, v := range field.Values {
		if !utf8.ValidString(v) {
			return "", fmt.Errorf("%w: invalid UTF-8 in %q", ErrEncode, v)
		}
	}

	if field.List {
		values := field.Values
		if values == nil {
			values = []string{}
		}
		return marshalList(values)
	}

	if field.Null || len(field.Values) == 0 {
		return "", nil
	}
	return field.Values[0], nil
}

func marshalList(values []string) (string, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(values); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return string(bytes.TrimSuffix(buffer.Bytes(), []byte{'\n'})), nil
}
