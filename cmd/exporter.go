package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/airframesio/musicbrainz-exporter/cmd/compressors"
	"github.com/airframesio/musicbrainz-exporter/cmd/entities"
	"github.com/airframesio/musicbrainz-exporter/cmd/formatters"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

// taskWriteInterval bounds how often counters alone rewrite the task file
const taskWriteInterval = 2 * time.Second

// Exporter runs one extraction per configured entity
type Exporter struct {
	config    *Config
	logger    *slog.Logger
	open      CursorOpener
	publisher Publisher
	progress  ProgressFunc
	tracker   *taskTracker
	db        *sql.DB
}

// exportJob is everything one entity needs to run
type exportJob struct {
	entity   entities.Entity
	writer   *BatchWriter
	mimeType string
}

// NewExporter creates an exporter. Cursors come from PostgreSQL unless
// WithCursorOpener replaces them.
func NewExporter(config *Config, logger *slog.Logger) *Exporter {
	return &Exporter{config: config, logger: logger}
}

// WithCursorOpener overrides the cursor source
func (x *Exporter) WithCursorOpener(open CursorOpener) *Exporter {
	x.open = open
	return x
}

// WithPublisher uploads each finished output file
func (x *Exporter) WithPublisher(p Publisher) *Exporter {
	x.publisher = p
	return x
}

// WithProgress forwards every extractor snapshot to fn
func (x *Exporter) WithProgress(fn ProgressFunc) *Exporter {
	x.progress = fn
	return x
}

func (x *Exporter) connect(ctx context.Context) error {
	db, err := sql.Open("postgres", x.config.Database.DSN())
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	// One held transaction per entity when running in parallel
	db.SetMaxOpenConns(len(x.config.Entities) + 1)
	x.db = db
	return nil
}

func (x *Exporter) plan() ([]exportJob, error) {
	formatter, err := formatters.GetFormatter(x.config.OutputFormat)
	if err != nil {
		return nil, err
	}
	compressor, err := compressors.GetCompressor(x.config.Compression)
	if err != nil {
		return nil, err
	}
	template := NewPathTemplate(x.config.PathTemplate)

	jobs := make([]exportJob, 0, len(x.config.Entities))
	for _, name := range x.config.Entities {
		entity, err := entities.Get(name)
		if err != nil {
			return nil, err
		}
		path := template.Generate(entity.FileStem, formatter.Extension(), compressor.Extension())
		writer := NewBatchWriter(path, entity.Header, formatter, compressor, x.config.CompressionLevel,
			x.logger.With(slog.String("entity", entity.Name)))
		jobs = append(jobs, exportJob{entity: entity, writer: writer, mimeType: formatter.MIMEType()})
	}
	return jobs, nil
}

// Run exports every configured entity. Results are returned in
// configuration order; a failed entity does not stop the others. The
// returned error joins every entity failure.
func (x *Exporter) Run(ctx context.Context) ([]RunResult, error) {
	jobs, err := x.plan()
	if err != nil {
		return nil, err
	}

	if x.config.DryRun {
		for _, job := range jobs {
			x.logger.Info(fmt.Sprintf("🔍 Dry run: %s -> %s (%s)", job.entity.Name, job.writer.Path(),
				filepath.Join(x.config.SQLDir, job.entity.SQLFile)))
		}
		return nil, nil
	}

	if err := WritePIDFile(); err != nil {
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() {
		_ = RemovePIDFile()
	}()
	x.tracker = newTaskTracker(x.config.Entities, taskWriteInterval)
	defer func() {
		_ = RemoveTaskFile()
	}()

	// Stale output from a previous run is removed before anything is fetched
	for _, job := range jobs {
		if err := job.writer.Reset(); err != nil {
			return nil, fmt.Errorf("%s: %w", job.entity.Name, err)
		}
	}

	if x.open == nil {
		x.logger.Debug("Connecting to database...")
		if err := x.connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		defer x.db.Close()
		x.logger.Info(fmt.Sprintf("✅ Connected to %s:%d/%s", x.config.Database.Host, x.config.Database.Port, x.config.Database.Name))
		x.open = PostgresCursorOpener(x.db)
	}

	results := make([]RunResult, len(jobs))
	if x.config.Parallel {
		var g errgroup.Group
		for i, job := range jobs {
			i, job := i, job
			g.Go(func() error {
				results[i] = x.runJob(ctx, job)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, job := range jobs {
			results[i] = x.runJob(ctx, job)
		}
	}

	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, r.Error)
		}
	}
	return results, errors.Join(errs...)
}

func (x *Exporter) runJob(ctx context.Context, job exportJob) RunResult {
	extractor := NewExtractor(job.entity, x.open, job.writer, x.logger, ExtractorOptions{
		SQLPath:        filepath.Join(x.config.SQLDir, job.entity.SQLFile),
		Prefetch:       x.config.Prefetch,
		FlushThreshold: x.config.FlushThreshold,
		Progress:       x.report,
	})

	result, err := extractor.Run(ctx)
	if err != nil {
		return result
	}

	if x.publisher != nil {
		if _, statErr := os.Stat(result.Path); statErr != nil {
			x.logger.Info(fmt.Sprintf("⏭️  %s: no output file, skipping upload", job.entity.Name))
			return result
		}
		location, err := x.publisher.Publish(ctx, result.Path, contentTypeFor(x.config.Compression, job.mimeType))
		if err != nil {
			result.Error = fmt.Errorf("%s: %w", job.entity.Name, err)
			return result
		}
		x.logger.Info(fmt.Sprintf("☁️  Uploaded %s to %s", job.entity.Name, location))
	}

	return result
}

func (x *Exporter) report(p Progress) {
	if x.tracker != nil {
		if err := x.tracker.update(p); err != nil {
			x.logger.Debug(fmt.Sprintf("Failed to update task file: %v", err))
		}
	}
	if x.progress != nil {
		x.progress(p)
	}
}

func contentTypeFor(compression string, formatMIME string) string {
	switch compression {
	case compressors.CompressionXZ:
		return "application/x-xz"
	case compressors.CompressionZstd:
		return "application/zstd"
	case compressors.CompressionLZ4:
		return "application/x-lz4"
	case compressors.CompressionGzip:
		return "application/gzip"
	default:
		return formatMIME
	}
}

// printSummary logs totals and one line per entity
func printSummary(logger *slog.Logger, results []RunResult) {
	var succeeded, failed int
	var totalBytes, totalRows, totalDuplicates int64

	for _, r := range results {
		if r.Error != nil {
			failed++
			continue
		}
		succeeded++
		totalBytes += r.BytesWritten
		totalRows += r.Accepted
		totalDuplicates += r.Duplicates
	}

	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Info("📈 Summary")
	logger.Info(fmt.Sprintf("✅ Successful: %d", succeeded))
	if failed > 0 {
		logger.Info(fmt.Sprintf("❌ Failed: %d", failed))
	}
	logger.Info(fmt.Sprintf("📝 Records written: %d (%d duplicates skipped)", totalRows, totalDuplicates))
	if totalBytes > 0 {
		logger.Info(fmt.Sprintf("💾 Total compressed: %.2f MB", float64(totalBytes)/(1024*1024)))
	}

	for _, r := range results {
		if r.Error != nil {
			logger.Error(fmt.Sprintf("❌ %s: %v", r.Entity, r.Error))
		} else {
			logger.Info(fmt.Sprintf("   %s: %s in %s", r.Entity, r.Path, r.Duration.Truncate(time.Millisecond)))
		}
	}
}
