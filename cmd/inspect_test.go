package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airframesio/musicbrainz-exporter/cmd/compressors"
	"github.com/airframesio/musicbrainz-exporter/cmd/formatters"
)

const inspectCSV = "name;country\nBjörk;IS\nSigur Rós;IS\nmúm;IS\n"

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		input    string
		expected rune
		wantErr  bool
	}{
		{input: ";", expected: ';'},
		{input: ",", expected: ','},
		{input: `\t`, expected: '\t'},
		{input: "|", expected: '|'},
		{input: "", wantErr: true},
		{input: ";;", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDelimiter(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrDelimiter) {
				t.Errorf("ParseDelimiter(%q): expected delimiter error, got %v", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.expected {
			t.Errorf("ParseDelimiter(%q) = %q, %v; want %q", tt.input, got, err, tt.expected)
		}
	}
}

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
		wantErr  bool
	}{
		{url: "https://example.org/exports/artists.csv.xz", expected: "artists.csv.xz"},
		{url: "https://example.org/exports/places.csv?token=abc&x=1", expected: "places.csv"},
		{url: "https://example.org/", wantErr: true},
		{url: "https://example.org", wantErr: true},
	}

	for _, tt := range tests {
		got, err := fileNameFromURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("fileNameFromURL(%q): expected error, got %q", tt.url, got)
			}
			continue
		}
		if err != nil || got != tt.expected {
			t.Errorf("fileNameFromURL(%q) = %q, %v; want %q", tt.url, got, err, tt.expected)
		}
	}
}

func TestInspectorDownload(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		if r.URL.Path != "/files/artists.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(inspectCSV))
	}))
	defer srv.Close()

	outputDir := filepath.Join(t.TempDir(), "outputs")
	inspector := NewInspector(srv.Client(), InspectOptions{OutputDir: outputDir, ChunkSize: 4}, testLogger())

	localPath, err := inspector.Download(context.Background(), srv.URL+"/files/artists.csv?sig=xyz")
	if err != nil {
		t.Fatal(err)
	}
	if localPath != filepath.Join(outputDir, "artists.csv") {
		t.Fatalf("unexpected local path %q", localPath)
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != inspectCSV {
		t.Fatalf("unexpected content %q", data)
	}
	if !strings.HasPrefix(userAgent, "musicbrainz-exporter/") {
		t.Fatalf("unexpected user agent %q", userAgent)
	}

	t.Run("not found", func(t *testing.T) {
		_, err := inspector.Download(context.Background(), srv.URL+"/files/missing.csv")
		if !errors.Is(err, ErrDownloadFailed) {
			t.Fatalf("expected download error, got %v", err)
		}
		if _, statErr := os.Stat(filepath.Join(outputDir, "missing.csv")); !errors.Is(statErr, os.ErrNotExist) {
			t.Fatal("failed download should not leave a file behind")
		}
	})
}

func TestInspectorDownloadTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("name;country\n"))
	}))
	defer srv.Close()

	outputDir := t.TempDir()
	inspector := NewInspector(srv.Client(), InspectOptions{OutputDir: outputDir}, testLogger())

	if _, err := inspector.Download(context.Background(), srv.URL+"/artists.csv"); !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected download error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "artists.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("partial download should be removed, got %v", err)
	}
}

func TestInspectorFetch(t *testing.T) {
	inspector := NewInspector(nil, InspectOptions{}, testLogger())

	if _, err := inspector.Fetch(context.Background(), ""); !errors.Is(err, ErrSourceRequired) {
		t.Fatalf("expected source error, got %v", err)
	}
	if _, err := inspector.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	localPath := filepath.Join(t.TempDir(), "places.csv")
	if err := os.WriteFile(localPath, []byte(inspectCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := inspector.Fetch(context.Background(), localPath)
	if err != nil {
		t.Fatal(err)
	}
	if got != localPath {
		t.Fatalf("local path should be returned as is, got %q", got)
	}
}

func TestInspectorLoadCompressed(t *testing.T) {
	compressor := compressors.NewXZCompressor()
	first, err := compressor.Compress([]byte("name;country\nBjörk;IS\n"), compressor.DefaultLevel())
	if err != nil {
		t.Fatal(err)
	}
	second, err := compressor.Compress([]byte("Sigur Rós;IS\nmúm;IS\n"), compressor.DefaultLevel())
	if err != nil {
		t.Fatal(err)
	}

	localPath := filepath.Join(t.TempDir(), "artists.csv.xz")
	if err := os.WriteFile(localPath, append(first, second...), 0o600); err != nil {
		t.Fatal(err)
	}

	table, err := NewInspector(nil, InspectOptions{}, testLogger()).Load(localPath)
	if err != nil {
		t.Fatal(err)
	}
	if table.NumRows() != 3 || table.NumColumns() != 2 {
		t.Fatalf("expected 3x2 table, got %dx%d", table.NumRows(), table.NumColumns())
	}
	if table.Rows[2][0] != "múm" {
		t.Fatalf("unexpected last row %v", table.Rows[2])
	}
}

func TestInspectEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(inspectCSV))
	}))
	defer srv.Close()

	inspector := NewInspector(srv.Client(), InspectOptions{OutputDir: t.TempDir()}, testLogger())
	rendered, table, err := inspector.Inspect(context.Background(), srv.URL+"/artists.csv")
	if err != nil {
		t.Fatal(err)
	}
	if table.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", table.NumRows())
	}
	for _, want := range []string{"name", "country", "Sigur Rós", "[3 rows x 2 columns]"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered table missing %q:\n%s", want, rendered)
		}
	}
}

func TestRenderTableKeepsCellText(t *testing.T) {
	table := &formatters.Table{
		Header: []string{"name", "country"},
		Rows:   [][]string{{"Sigur Rós", "IS"}, {"múm", "IS"}},
	}

	rendered := RenderTable(table, 5)
	for _, want := range []string{"name", "country", "Sigur Rós", "múm", "IS"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered table missing %q:\n%s", want, rendered)
		}
	}
	if strings.Contains(rendered, "…") {
		t.Errorf("cell text should not be truncated:\n%s", rendered)
	}
}

func TestPreviewRows(t *testing.T) {
	table := &formatters.Table{Header: []string{"n"}}
	for _, v := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		table.Rows = append(table.Rows, []string{v})
	}

	rows := previewRows(table, 2)
	expected := []string{"1", "2", "...", "6", "7"}
	if len(rows) != len(expected) {
		t.Fatalf("expected %d rows, got %d", len(expected), len(rows))
	}
	for i, want := range expected {
		if rows[i][0] != want {
			t.Errorf("row %d: expected %q, got %q", i, want, rows[i][0])
		}
	}

	if got := previewRows(table, 4); len(got) != 7 {
		t.Fatalf("short tables are shown whole, got %d rows", len(got))
	}

	rendered := RenderTable(table, 2)
	if !strings.Contains(rendered, "[7 rows x 1 columns]") {
		t.Fatalf("missing footer:\n%s", rendered)
	}
}
