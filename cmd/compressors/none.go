package compressors

import "io"

// NoneCompressor writes batches as plain text. On the read side it is the
// passthrough used when an inspected file has no compression extension.
type NoneCompressor struct{}

// NewNoneCompressor creates a passthrough compressor
func NewNoneCompressor() *NoneCompressor {
	return &NoneCompressor{}
}

// Compress returns the batch as is; appended batches are already a valid file
func (c *NoneCompressor) Compress(data []byte, _ int) ([]byte, error) {
	return data, nil
}

// Extension is empty, so the path ends with the format extension
func (c *NoneCompressor) Extension() string {
	return ""
}

// NewReader wraps r without decoding
func (c *NoneCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// DefaultLevel is 0, the only level accepted for uncompressed output
func (c *NoneCompressor) DefaultLevel() int {
	return 0
}
