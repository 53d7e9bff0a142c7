package formatters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/airframesio/musicbrainz-exporter/cmd/records"
)

// JSONLFormatter handles JSONL (JSON Lines) format output. There is no header
// line; every object is keyed by the header names.
type JSONLFormatter struct{}

// NewJSONLFormatter creates a new JSONL formatter
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{}
}

// Format converts tuples to JSONL format (one JSON object per line)
func (f *JSONLFormatter) Format(header []string, batch []records.Tuple, _ bool) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)

	for i, tuple := range batch {
		if len(tuple) != len(header) {
			return nil, fmt.Errorf("%w: record %d has %d fields, header has %d", ErrEncode, i, len(tuple), len(header))
		}

		// Keys in header order
		buffer.WriteByte('{')
		for j, field := range tuple {
			if j > 0 {
				buffer.WriteByte(',')
			}
			if err := encoder.Encode(header[j]); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrEncode, err)
			}
			trimNewline(&buffer)
			buffer.WriteByte(':')

			value, err := jsonValue(field)
			if err != nil {
				return nil, fmt.Errorf("record %d, column %s: %w", i, header[j], err)
			}
			if err := encoder.Encode(value); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrEncode, err)
			}
			trimNewline(&buffer)
		}
		buffer.WriteString("}\n")
	}

	return buffer.Bytes(), nil
}

func jsonValue(field records.Field) (interface{}, error) {
	for _, v := range field.Values {
		if !utf8.ValidString(v) {
			return nil, fmt.Errorf("%w: invalid UTF-8 in %q", ErrEncode, v)
		}
	}
	if field.List {
		if field.Values == nil {
			return []string{}, nil
		}
		return field.Values, nil
	}
	if field.Null || len(field.Values) == 0 {
		return nil, nil
	}
	return field.Values[0], nil
}

func trimNewline(buffer *bytes.Buffer) {
	if n := buffer.Len(); n > 0 && buffer.Bytes()[n-1] == '\n' {
		buffer.Truncate(n - 1)
	}
}

// Extension returns the file extension for JSONL files
func (f *JSONLFormatter) Extension() string {
	return ".jsonl"
}

// MIMEType returns the MIME type for JSONL
func (f *JSONLFormatter) MIMEType() string {
	return "application/x-ndjson"
}
