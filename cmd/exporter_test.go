package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/airframesio/musicbrainz-exporter/cmd/compressors"
	"github.com/airframesio/musicbrainz-exporter/cmd/entities"
)

func artistRows(n int) []json.RawMessage {
	rows := make([]json.RawMessage, n)
	for i := range rows {
		rows[i] = json.RawMessage(fmt.Sprintf(`{"name": "artist-%d", "guid": "guid-%d"}`, i, i))
	}
	return rows
}

// cursorSet hands out one in-memory cursor per entity
type cursorSet struct {
	mu      sync.Mutex
	rows    map[string][]json.RawMessage
	fail    map[string]error
	opened  []string
	cursors map[string]*sliceCursor
}

func newCursorSet(rows map[string][]json.RawMessage) *cursorSet {
	return &cursorSet{rows: rows, fail: map[string]error{}, cursors: map[string]*sliceCursor{}}
}

func (s *cursorSet) opener() CursorOpener {
	return func(_ context.Context, name string, _ string, prefetch int) (Cursor, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.opened = append(s.opened, name)
		entity := strings.TrimSuffix(name, "_cursor")
		if err := s.fail[entity]; err != nil {
			return nil, err
		}
		c := &sliceCursor{rows: s.rows[entity], prefetch: prefetch}
		s.cursors[entity] = c
		return c, nil
	}
}

type publishCall struct {
	path        string
	contentType string
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, localPath string, contentType string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{path: localPath, contentType: contentType})
	if p.err != nil {
		return "", p.err
	}
	return "s3://exports/" + filepath.Base(localPath), nil
}

func exporterConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	sqlDir := filepath.Join(dir, "sql")
	if err := os.MkdirAll(sqlDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{entities.Artists, entities.Places} {
		e := mustEntity(t, name)
		if err := os.WriteFile(filepath.Join(sqlDir, e.SQLFile), []byte("SELECT 1;\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	return &Config{
		Prefetch:         2,
		Entities:         []string{entities.Artists, entities.Places},
		SQLDir:           sqlDir,
		PathTemplate:     filepath.Join(dir, "out", "{entity}{ext}"),
		OutputFormat:     "csv",
		Compression:      compressors.CompressionNone,
		CompressionLevel: autoCompressionLevel,
	}
}

func outputPath(t *testing.T, config *Config, entity string) string {
	t.Helper()
	return NewPathTemplate(config.PathTemplate).Generate(mustEntity(t, entity).FileStem, ".csv", "")
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Count(string(data), "\n")
}

func TestExporterRun(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			config := exporterConfig(t)
			config.Parallel = parallel
			cursors := newCursorSet(map[string][]json.RawMessage{
				entities.Artists: artistRows(5),
				entities.Places:  placeRows(3),
			})

			var mu sync.Mutex
			seen := map[string]State{}
			exporter := NewExporter(config, testLogger()).
				WithCursorOpener(cursors.opener()).
				WithProgress(func(p Progress) {
					mu.Lock()
					seen[p.Entity] = p.State
					mu.Unlock()
				})

			results, err := exporter.Run(context.Background())
			if err != nil {
				t.Fatal(err)
			}

			if len(results) != 2 || results[0].Entity != entities.Artists || results[1].Entity != entities.Places {
				t.Fatalf("results should follow configuration order: %+v", results)
			}
			for _, r := range results {
				if r.State != StateDone {
					t.Errorf("%s: expected DONE, got %s", r.Entity, r.State)
				}
			}
			if seen[entities.Artists] != StateDone || seen[entities.Places] != StateDone {
				t.Fatalf("final progress should be DONE for both: %v", seen)
			}

			// header plus one line per row
			if got := countLines(t, outputPath(t, config, entities.Artists)); got != 6 {
				t.Errorf("artists: expected 6 lines, got %d", got)
			}
			if got := countLines(t, outputPath(t, config, entities.Places)); got != 4 {
				t.Errorf("places: expected 4 lines, got %d", got)
			}
			for name, c := range cursors.cursors {
				if !c.closed {
					t.Errorf("%s cursor was not closed", name)
				}
			}

			if _, err := ReadPIDFile(); err == nil {
				t.Error("PID file should be removed after the run")
			}
			if _, err := ReadTaskInfo(); err == nil {
				t.Error("task file should be removed after the run")
			}
		})
	}
}

func TestExporterFailureDoesNotStopOthers(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			config := exporterConfig(t)
			config.Parallel = parallel
			cursors := newCursorSet(map[string][]json.RawMessage{entities.Places: placeRows(3)})
			cursors.fail[entities.Artists] = errInjected

			results, err := NewExporter(config, testLogger()).WithCursorOpener(cursors.opener()).Run(context.Background())
			if !errors.Is(err, errInjected) {
				t.Fatalf("expected joined entity error, got %v", err)
			}
			if !strings.Contains(err.Error(), "artists: ") {
				t.Fatalf("error should name the entity: %v", err)
			}

			if results[0].State != StateFailed || results[0].Error == nil {
				t.Fatalf("artists should fail: %+v", results[0])
			}
			if results[1].State != StateDone || results[1].Error != nil {
				t.Fatalf("places should succeed: %+v", results[1])
			}
			if got := countLines(t, outputPath(t, config, entities.Places)); got != 4 {
				t.Errorf("places: expected 4 lines, got %d", got)
			}
		})
	}
}

func TestExporterResetsOutputs(t *testing.T) {
	config := exporterConfig(t)
	cursors := newCursorSet(map[string][]json.RawMessage{entities.Artists: artistRows(1)})

	placesPath := outputPath(t, config, entities.Places)
	if err := os.MkdirAll(filepath.Dir(placesPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(placesPath, []byte("stale\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewExporter(config, testLogger()).WithCursorOpener(cursors.opener()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// places returned no rows, so the stale file is gone and nothing replaces it
	if _, err := os.Stat(placesPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no places output, got %v", err)
	}
}

func TestExporterDryRun(t *testing.T) {
	config := exporterConfig(t)
	config.DryRun = true
	cursors := newCursorSet(map[string][]json.RawMessage{entities.Artists: artistRows(3)})

	results, err := NewExporter(config, testLogger()).WithCursorOpener(cursors.opener()).Run(context.Background())
	if err != nil || results != nil {
		t.Fatalf("dry run should return nothing, got %v, %v", results, err)
	}
	if len(cursors.opened) != 0 {
		t.Fatalf("dry run should not open cursors: %v", cursors.opened)
	}
	if _, err := os.Stat(outputPath(t, config, entities.Artists)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("dry run should not write output")
	}
}

func TestExporterPublishes(t *testing.T) {
	config := exporterConfig(t)
	cursors := newCursorSet(map[string][]json.RawMessage{entities.Artists: artistRows(2)})
	publisher := &fakePublisher{}

	_, err := NewExporter(config, testLogger()).
		WithCursorOpener(cursors.opener()).
		WithPublisher(publisher).
		Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// places produced no file and is skipped
	if len(publisher.calls) != 1 {
		t.Fatalf("expected one upload, got %v", publisher.calls)
	}
	call := publisher.calls[0]
	if call.path != outputPath(t, config, entities.Artists) || call.contentType != "text/csv" {
		t.Fatalf("unexpected upload %+v", call)
	}

	t.Run("publish failure", func(t *testing.T) {
		cursors := newCursorSet(map[string][]json.RawMessage{entities.Artists: artistRows(2)})
		publisher := &fakePublisher{err: fmt.Errorf("%w: denied", ErrPublish)}

		results, err := NewExporter(config, testLogger()).
			WithCursorOpener(cursors.opener()).
			WithPublisher(publisher).
			Run(context.Background())
		if !errors.Is(err, ErrPublish) {
			t.Fatalf("expected publish error, got %v", err)
		}
		if results[0].State != StateDone || !errors.Is(results[0].Error, ErrPublish) {
			t.Fatalf("extraction should finish before the upload fails: %+v", results[0])
		}
	})
}

func TestExporterInvalidPlan(t *testing.T) {
	config := exporterConfig(t)
	config.OutputFormat = "parquet"

	if _, err := NewExporter(config, testLogger()).Run(context.Background()); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		compression string
		expected    string
	}{
		{compression: compressors.CompressionXZ, expected: "application/x-xz"},
		{compression: compressors.CompressionZstd, expected: "application/zstd"},
		{compression: compressors.CompressionLZ4, expected: "application/x-lz4"},
		{compression: compressors.CompressionGzip, expected: "application/gzip"},
		{compression: compressors.CompressionNone, expected: "text/csv"},
	}

	for _, tt := range tests {
		if got := contentTypeFor(tt.compression, "text/csv"); got != tt.expected {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tt.compression, got, tt.expected)
		}
	}
}
