package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/airframesio/musicbrainz-exporter/cmd/entities"
	"github.com/airframesio/musicbrainz-exporter/cmd/records"
)

// State is a step of an extraction run
type State string

// Extraction states
const (
	StateInit      State = "INIT"
	StateStreaming State = "STREAMING"
	StateFlushing  State = "FLUSHING"
	StateDraining  State = "DRAINING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// BatchSink persists drained batches
type BatchSink interface {
	Write(batch []records.Tuple, includeHeader bool) (int64, error)
}

// Progress is a snapshot of a running extraction
type Progress struct {
	Entity       string
	State        State
	RowsRead     int64
	Accepted     int64
	Duplicates   int64
	Flushes      int
	BytesWritten int64
}

// ProgressFunc receives progress snapshots. It must not block for long.
type ProgressFunc func(Progress)

// RunResult summarizes one extraction run
type RunResult struct {
	Progress
	Path     string
	Duration time.Duration
	Error    error
}

// Extractor streams one entity's query through normalize, dedup and batch
// writing. An Extractor runs once; it owns its cursor, accumulator and sink.
type Extractor struct {
	entity    entities.Entity
	sqlPath   string
	prefetch  int
	threshold int
	open      CursorOpener
	sink      BatchSink
	logger    *slog.Logger
	progress  ProgressFunc

	state State
	stats Progress
}

// ExtractorOptions configures an Extractor
type ExtractorOptions struct {
	SQLPath        string
	Prefetch       int
	FlushThreshold int
	Progress       ProgressFunc
}

// NewExtractor creates an extractor for entity
func NewExtractor(entity entities.Entity, open CursorOpener, sink BatchSink, logger *slog.Logger, opts ExtractorOptions) *Extractor {
	prefetch := opts.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	threshold := opts.FlushThreshold
	if threshold <= 0 {
		threshold = prefetch * flushPrefetchFactor
	}

	return &Extractor{
		entity:    entity,
		sqlPath:   opts.SQLPath,
		prefetch:  prefetch,
		threshold: threshold,
		open:      open,
		sink:      sink,
		logger:    logger.With(slog.String("entity", entity.Name)),
		progress:  opts.Progress,
		state:     StateInit,
		stats:     Progress{Entity: entity.Name, State: StateInit},
	}
}

// State returns the current state
func (e *Extractor) State() State {
	return e.state
}

func (e *Extractor) transition(next State) {
	e.logger.Debug(fmt.Sprintf("%s: %s -> %s", e.entity.Name, e.state, next),
		slog.String("state", string(next)))
	e.state = next
	e.stats.State = next
	e.report()
}

func (e *Extractor) report() {
	if e.progress != nil {
		e.progress(e.stats)
	}
}

// Run executes the extraction to completion. The returned result is filled
// in on failure too; the output file is left as written so far.
func (e *Extractor) Run(ctx context.Context) (RunResult, error) {
	start := time.Now()
	err := e.run(ctx)

	result := RunResult{
		Progress: e.stats,
		Duration: time.Since(start),
		Error:    err,
	}
	if p, ok := e.sink.(interface{ Path() string }); ok {
		result.Path = p.Path()
	}
	return result, err
}

func (e *Extractor) run(ctx context.Context) error {
	if e.state != StateInit {
		return fmt.Errorf("%s: extractor already ran (state %s)", e.entity.Name, e.state)
	}

	query, err := os.ReadFile(e.sqlPath)
	if err != nil {
		return e.fail(fmt.Errorf("failed to read query: %w", err))
	}

	cursorName := e.entity.Name + "_cursor"
	cursor, err := e.open(ctx, cursorName, string(query), e.prefetch)
	if err != nil {
		return e.fail(err)
	}
	e.logger.Info(fmt.Sprintf("📤 Extracting %s (prefetch %d, flush above %d)", e.entity.Name, e.prefetch, e.threshold))

	acc := records.NewAccumulator(e.threshold)
	firstFlush := true
	flush := func() error {
		batch := acc.Drain()
		n, err := e.sink.Write(batch, firstFlush)
		e.stats.BytesWritten += n
		if err != nil {
			return err
		}
		firstFlush = false
		e.stats.Flushes++
		e.logger.Info(fmt.Sprintf("💾 Wrote %d %s (flush %d)", len(batch), e.entity.Name, e.stats.Flushes),
			slog.Int("records", len(batch)),
			slog.Int("flush", e.stats.Flushes))
		return nil
	}

	e.transition(StateStreaming)
	for {
		rows, err := cursor.Fetch(ctx)
		if err != nil {
			return e.abort(cursor, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, raw := range rows {
			e.stats.RowsRead++

			var row records.Row
			if err := json.Unmarshal(raw, &row); err != nil {
				return e.abort(cursor, fmt.Errorf("row %d: %w: %w", e.stats.RowsRead, records.ErrShape, err))
			}
			tuple, err := e.entity.Normalize(row)
			if err != nil {
				return e.abort(cursor, fmt.Errorf("row %d: %w", e.stats.RowsRead, err))
			}

			if acc.Offer(tuple) == records.Duplicate {
				e.stats.Duplicates++
				continue
			}
			e.stats.Accepted++

			if acc.ShouldFlush() {
				e.transition(StateFlushing)
				if err := flush(); err != nil {
					return e.abort(cursor, err)
				}
				e.transition(StateStreaming)
			}
		}
		e.report()
	}

	e.transition(StateDraining)
	if acc.Len() > 0 {
		if err := flush(); err != nil {
			return e.abort(cursor, err)
		}
	}

	if err := cursor.Close(ctx); err != nil {
		return e.fail(err)
	}

	e.transition(StateDone)
	e.logger.Info(fmt.Sprintf("✅ %s: %d rows read, %d written, %d duplicates skipped",
		e.entity.Name, e.stats.RowsRead, e.stats.Accepted, e.stats.Duplicates),
		slog.Int64("rows", e.stats.RowsRead),
		slog.Int64("accepted", e.stats.Accepted),
		slog.Int64("duplicates", e.stats.Duplicates))
	return nil
}

func (e *Extractor) abort(cursor Cursor, err error) error {
	if abortErr := cursor.Abort(); abortErr != nil {
		e.logger.Debug(fmt.Sprintf("Failed to release cursor: %v", abortErr))
	}
	return e.fail(err)
}

func (e *Extractor) fail(err error) error {
	failedIn := e.state
	e.transition(StateFailed)
	return fmt.Errorf("%s: %s: %w", e.entity.Name, failedIn, err)
}
