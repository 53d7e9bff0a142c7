package formatters

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrEmptyTable is returned when the input holds no header line
var ErrEmptyTable = errors.New("table has no header")

// Table is a delimited file loaded into memory
type Table struct {
	Header []string
	Rows   [][]string
}

// NumRows returns the number of data rows
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumColumns returns the number of header columns
func (t *Table) NumColumns() int {
	return len(t.Header)
}

// TableReader reads delimited text with a header line
type TableReader struct {
	reader   *csv.Reader
	closer   io.Closer
	header   []string
	readOnce bool
}

// NewTableReader creates a reader splitting fields on comma
func NewTableReader(r io.Reader, comma rune) *TableReader {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	return &TableReader{reader: reader}
}

// NewTableReaderWithCloser creates a table reader that closes r on Close
func NewTableReaderWithCloser(r io.ReadCloser, comma rune) *TableReader {
	tr := NewTableReader(r, comma)
	tr.closer = r
	return tr
}

// readHeader reads the header row if not already read
func (r *TableReader) readHeader() error {
	if r.readOnce {
		return nil
	}

	header, err := r.reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyTable
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	r.header = header
	r.readOnce = true
	return nil
}

// Header returns the header row
func (r *TableReader) Header() ([]string, error) {
	if err := r.readHeader(); err != nil {
		return nil, err
	}
	return r.header, nil
}

// ReadChunk reads up to chunkSize rows. An empty result means the input is exhausted.
func (r *TableReader) ReadChunk(chunkSize int) ([][]string, error) {
	if err := r.readHeader(); err != nil {
		return nil, err
	}

	var rows [][]string
	for len(rows) < chunkSize {
		record, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		rows = append(rows, r.fit(record))
	}

	return rows, nil
}

// ReadAll loads the remaining input into a Table
func (r *TableReader) ReadAll() (*Table, error) {
	if err := r.readHeader(); err != nil {
		return nil, err
	}

	table := &Table{Header: r.header}
	for {
		record, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		table.Rows = append(table.Rows, r.fit(record))
	}

	return table, nil
}

// fit pads or truncates a record to the header width
func (r *TableReader) fit(record []string) []string {
	if len(record) == len(r.header) {
		return record
	}
	row := make([]string, len(r.header))
	copy(row, record)
	return row
}

// Close closes the underlying reader if it's closable
func (r *TableReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
