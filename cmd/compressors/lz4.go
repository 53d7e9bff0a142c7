package compressors

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4Levels maps 0-9 onto the library's level constants; 0 is the fast mode
var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// LZ4Compressor handles LZ4 compression
type LZ4Compressor struct{}

// NewLZ4Compressor creates a new LZ4 compressor
func NewLZ4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

// Compress compresses data using LZ4
func (c *LZ4Compressor) Compress(data []byte, level int) ([]byte, error) {
	var buffer bytes.Buffer

	writer := lz4.NewWriter(&buffer)

	if level >= 0 && level < len(lz4Levels) {
		if err := writer.Apply(lz4.CompressionLevelOption(lz4Levels[level])); err != nil {
			return nil, fmt.Errorf("failed to apply compression level: %w", err)
		}
	}

	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close lz4 writer: %w", err)
	}

	return buffer.Bytes(), nil
}

// Extension returns the file extension for LZ4 compression
func (c *LZ4Compressor) Extension() string {
	return ".lz4"
}

// NewReader returns a reader over all concatenated lz4 frames of r
func (c *LZ4Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	src := bufio.NewReader(r)
	return io.NopCloser(&lz4FrameReader{src: src, reader: lz4.NewReader(src)}), nil
}

// lz4FrameReader continues with the next frame when one ends and input remains
type lz4FrameReader struct {
	src    *bufio.Reader
	reader *lz4.Reader
}

func (r *lz4FrameReader) Read(p []byte) (int, error) {
	for {
		n, err := r.reader.Read(p)
		if !errors.Is(err, io.EOF) {
			return n, err
		}
		if _, perr := r.src.Peek(1); perr != nil {
			return n, io.EOF
		}
		r.reader.Reset(r.src)
		if n > 0 {
			return n, nil
		}
	}
}

// DefaultLevel returns the default compression level for LZ4
func (c *LZ4Compressor) DefaultLevel() int {
	return 1 // Fast compression
}
