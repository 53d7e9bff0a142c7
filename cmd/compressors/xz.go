package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// XZCompressor handles xz (LZMA2) compression
type XZCompressor struct{}

// NewXZCompressor creates a new xz compressor
func NewXZCompressor() *XZCompressor {
	return &XZCompressor{}
}

// Compress compresses data into a single xz stream
func (c *XZCompressor) Compress(data []byte, level int) ([]byte, error) {
	var buffer bytes.Buffer

	config := xz.WriterConfig{DictCap: dictCapForLevel(level)}
	writer, err := config.NewWriter(&buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close xz writer: %w", err)
	}

	return buffer.Bytes(), nil
}

// dictCapForLevel maps xz presets 0-9 to dictionary sizes
func dictCapForLevel(level int) int {
	switch {
	case level <= 0:
		return 256 << 10
	case level <= 1:
		return 1 << 20
	case level <= 3:
		return 4 << 20
	case level <= 6:
		return 8 << 20
	default:
		return 64 << 20
	}
}

// NewReader returns a reader over all concatenated xz streams of r
func (c *XZCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	reader, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz reader: %w", err)
	}
	return io.NopCloser(reader), nil
}

// Extension returns the file extension for xz compression
func (c *XZCompressor) Extension() string {
	return ".xz"
}

// DefaultLevel returns the default compression level for xz
func (c *XZCompressor) DefaultLevel() int {
	return 6
}
