package formatters

import (
	"errors"
	"fmt"

	"github.com/airframesio/musicbrainz-exporter/cmd/records"
)

// Format type constants
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

var (
	// ErrUnsupportedFormat is returned when an unknown output format is requested
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrEncode is returned when a tuple cannot be serialized
	ErrEncode = errors.New("failed to encode record")
)

// Formatter serializes batches of tuples. Every call produces a self-contained
// chunk so chunks can be appended to the same file one after another.
type Formatter interface {
	// Format serializes a batch, preceded by the header when includeHeader is set
	Format(header []string, batch []records.Tuple, includeHeader bool) ([]byte, error)

	// Extension returns the file extension for this format (e.g., ".csv", ".jsonl")
	Extension() string

	// MIMEType returns the MIME type for this format
	MIMEType() string
}

// GetFormatter returns the formatter for the format string
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case FormatCSV:
		return NewCSVFormatter(), nil
	case FormatJSONL:
		return NewJSONLFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
