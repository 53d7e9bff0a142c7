package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/airframesio/musicbrainz-exporter/cmd/compressors"
	"github.com/airframesio/musicbrainz-exporter/cmd/formatters"
	"github.com/airframesio/musicbrainz-exporter/cmd/records"
)

// ErrWrite is returned when a batch cannot be persisted
var ErrWrite = errors.New("failed to write batch")

// BatchWriter appends formatted, compressed batches to one output file.
// Every Write is a complete encode-compress-append; a batch becomes one
// compressed frame at the end of the file.
type BatchWriter struct {
	path       string
	header     []string
	formatter  formatters.Formatter
	compressor compressors.Compressor
	level      int
	logger     *slog.Logger
}

// NewBatchWriter creates a writer for path. A negative level selects the compressor default.
func NewBatchWriter(path string, header []string, formatter formatters.Formatter, compressor compressors.Compressor, level int, logger *slog.Logger) *BatchWriter {
	if level < 0 {
		level = compressor.DefaultLevel()
	}
	return &BatchWriter{
		path:       path,
		header:     header,
		formatter:  formatter,
		compressor: compressor,
		level:      level,
		logger:     logger,
	}
}

// Path returns the output file path
func (w *BatchWriter) Path() string {
	return w.path
}

// Reset removes a pre-existing output file and makes sure its directory exists
func (w *BatchWriter) Reset() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %w", ErrWrite, err)
	}
	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove existing output: %w", ErrWrite, err)
	}
	return nil
}

// Write serializes the batch and appends it, compressed, to the output file.
// It returns the number of compressed bytes appended.
func (w *BatchWriter) Write(batch []records.Tuple, includeHeader bool) (int64, error) {
	data, err := w.formatter.Format(w.header, batch, includeHeader)
	if err != nil {
		return 0, err
	}

	compressed, err := w.compressor.Compress(data, w.level)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	file, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	n, err := file.Write(compressed)
	if err != nil {
		file.Close()
		return int64(n), fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := file.Close(); err != nil {
		return int64(n), fmt.Errorf("%w: %w", ErrWrite, err)
	}

	w.logger.Debug(fmt.Sprintf("Wrote %d records (%d bytes) to %s", len(batch), n, w.path),
		slog.Int("records", len(batch)),
		slog.Int("bytes", n),
		slog.String("path", w.path),
		slog.Bool("header", includeHeader))

	return int64(n), nil
}
