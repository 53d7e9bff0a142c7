package compressors

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnsupportedCompression is returned when an unsupported compression type is requested
var ErrUnsupportedCompression = errors.New("unsupported compression type")

// Compression type constants
const (
	CompressionXZ   = "xz"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
	CompressionGzip = "gzip"
	CompressionNone = "none"
)

// Compressor defines the interface for compression handlers.
//
// Compress produces one complete, independently decodable frame (or member)
// per call, so the output of several calls can be appended to the same file
// and read back as a single stream by NewReader.
type Compressor interface {
	// Compress compresses the input data
	Compress(data []byte, level int) ([]byte, error)

	// NewReader returns a reader decompressing all concatenated frames of r
	NewReader(r io.Reader) (io.ReadCloser, error)

	// Extension returns the file extension for this compression (e.g., ".xz", ".zst", ".gz")
	Extension() string

	// DefaultLevel returns the default compression level
	DefaultLevel() int
}

// GetCompressor returns the appropriate compressor based on the compression string
func GetCompressor(compression string) (Compressor, error) {
	switch compression {
	case CompressionXZ:
		return NewXZCompressor(), nil
	case CompressionZstd:
		return NewZstdCompressor(), nil
	case CompressionLZ4:
		return NewLZ4Compressor(), nil
	case CompressionGzip:
		return NewGzipCompressor(), nil
	case CompressionNone:
		return NewNoneCompressor(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, compression)
	}
}

// DetectFromFilename picks the compression type from a file extension
func DetectFromFilename(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".xz"):
		return CompressionXZ
	case strings.HasSuffix(lower, ".zst"):
		return CompressionZstd
	case strings.HasSuffix(lower, ".lz4"):
		return CompressionLZ4
	case strings.HasSuffix(lower, ".gz"):
		return CompressionGzip
	default:
		return CompressionNone
	}
}
