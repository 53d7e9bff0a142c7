package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/airframesio/musicbrainz-exporter/cmd/compressors"
	"github.com/airframesio/musicbrainz-exporter/cmd/formatters"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Static errors for the inspect flow
var (
	ErrDownloadFailed = errors.New("download failed")
	ErrSourceRequired = errors.New("a URL or file path is required")
	ErrDelimiter      = errors.New("delimiter must be a single character")
)

const (
	defaultChunkSize   = 1024
	defaultOutputDir   = "/tmp/outputs"
	defaultInspectRows = 5
	downloadTimeout    = 30 * time.Minute
)

// InspectOptions controls downloading and rendering
type InspectOptions struct {
	OutputDir string
	ChunkSize int
	Delimiter rune
	Rows      int
}

// Inspector downloads delimited exports and previews them in the terminal
type Inspector struct {
	client *http.Client
	opts   InspectOptions
	logger *slog.Logger
}

// NewInspector creates an inspector. A nil client gets a default one.
func NewInspector(client *http.Client, opts InspectOptions, logger *slog.Logger) *Inspector {
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	if opts.OutputDir == "" {
		opts.OutputDir = defaultOutputDir
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}
	if opts.Rows <= 0 {
		opts.Rows = defaultInspectRows
	}
	return &Inspector{client: client, opts: opts, logger: logger}
}

// ParseDelimiter converts a flag value into a single rune
func ParseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrDelimiter, s)
	}
	return runes[0], nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// fileNameFromURL returns the last path segment without query string
func fileNameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("%w: cannot derive a file name from %s", ErrDownloadFailed, rawURL)
	}
	return name, nil
}

// Fetch resolves source to a local file, downloading it when it is a URL
func (i *Inspector) Fetch(ctx context.Context, source string) (string, error) {
	if source == "" {
		return "", ErrSourceRequired
	}
	if !isRemote(source) {
		if _, err := os.Stat(source); err != nil {
			return "", err
		}
		return source, nil
	}
	return i.Download(ctx, source)
}

// Download streams rawURL into the output directory in fixed-size chunks
func (i *Inspector) Download(ctx context.Context, rawURL string) (string, error) {
	name, err := fileNameFromURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %w", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("musicbrainz-exporter/%s", Version))

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned status %d", ErrDownloadFailed, rawURL, resp.StatusCode)
	}

	if err := os.MkdirAll(i.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	dest := filepath.Join(i.opts.OutputDir, name)

	file, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	i.logger.Info(fmt.Sprintf("⬇️  Downloading %s to %s", rawURL, dest))
	buf := make([]byte, i.opts.ChunkSize)
	written, err := io.CopyBuffer(onlyWriter{file}, resp.Body, buf)
	if err != nil {
		file.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	i.logger.Debug(fmt.Sprintf("Downloaded %d bytes", written), slog.Int64("bytes", written), slog.String("path", dest))

	return dest, nil
}

// onlyWriter hides ReadFrom so io.CopyBuffer honors the chunk size
type onlyWriter struct {
	io.Writer
}

// Load reads a local delimited file, decompressing by extension
func (i *Inspector) Load(localPath string) (*formatters.Table, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	compressor, err := compressors.GetCompressor(compressors.DetectFromFilename(localPath))
	if err != nil {
		return nil, err
	}
	decompressed, err := compressor.NewReader(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", localPath, err)
	}

	reader := formatters.NewTableReaderWithCloser(decompressed, i.opts.Delimiter)
	defer reader.Close()

	return reader.ReadAll()
}

// Inspect fetches source, loads it and returns the rendered preview
func (i *Inspector) Inspect(ctx context.Context, source string) (string, *formatters.Table, error) {
	localPath, err := i.Fetch(ctx, source)
	if err != nil {
		return "", nil, err
	}
	t, err := i.Load(localPath)
	if err != nil {
		return "", nil, err
	}
	return RenderTable(t, i.opts.Rows), t, nil
}

var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	// Unpadded cells have their widest value truncated
	cellStyle        = lipgloss.NewStyle().Padding(0, 1)
)

// previewRows returns the first and last n rows with an ellipsis row between
// them when the table is longer than 2n
func previewRows(t *formatters.Table, n int) [][]string {
	if len(t.Rows) <= 2*n {
		return t.Rows
	}

	rows := make([][]string, 0, 2*n+1)
	rows = append(rows, t.Rows[:n]...)
	ellipsis := make([]string, len(t.Header))
	for c := range ellipsis {
		ellipsis[c] = "..."
	}
	rows = append(rows, ellipsis)
	rows = append(rows, t.Rows[len(t.Rows)-n:]...)
	return rows
}

// RenderTable renders a head/tail preview with a dimensions footer
func RenderTable(t *formatters.Table, n int) string {
	rendered := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		StyleFunc(func(_, _ int) lipgloss.Style { return cellStyle }).
		Headers(t.Header...).
		Rows(previewRows(t, n)...).
		String()

	footer := footerStyle.Render(fmt.Sprintf("[%d rows x %d columns]", t.NumRows(), t.NumColumns()))
	return rendered + "\n" + footer
}
