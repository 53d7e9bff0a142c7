package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrCursor is returned when the server-side cursor cannot be opened or read
var ErrCursor = errors.New("cursor error")

// Cursor yields query results in bounded windows
type Cursor interface {
	// Fetch returns the next window of rows; an empty result means the cursor is exhausted
	Fetch(ctx context.Context) ([]json.RawMessage, error)

	// Close releases the cursor and commits its transaction
	Close(ctx context.Context) error

	// Abort releases the cursor after a failure, rolling back its transaction
	Abort() error
}

// CursorOpener opens a cursor named name over query, fetching prefetch rows per round-trip
type CursorOpener func(ctx context.Context, name, query string, prefetch int) (Cursor, error)

// pgCursor is a PostgreSQL DECLARE ... CURSOR held open inside a transaction.
// Each row must have a single JSON column (e.g. SELECT row_to_json(t) ...).
type pgCursor struct {
	tx       *sql.Tx
	name     string
	prefetch int
}

// PostgresCursorOpener returns a CursorOpener backed by db
func PostgresCursorOpener(db *sql.DB) CursorOpener {
	return func(ctx context.Context, name, query string, prefetch int) (Cursor, error) {
		return openPostgresCursor(ctx, db, name, query, prefetch)
	}
}

func openPostgresCursor(ctx context.Context, db *sql.DB, name, query string, prefetch int) (*pgCursor, error) {
	query = trimQuery(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrCursor)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrCursor, err)
	}

	quoted := pq.QuoteIdentifier(name)
	//nolint:gosec // query comes from the local SQL scripts, cursor name is quoted
	declare := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", quoted, query)
	if _, err := tx.ExecContext(ctx, declare); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: failed to declare cursor: %w", ErrCursor, err)
	}

	return &pgCursor{tx: tx, name: quoted, prefetch: prefetch}, nil
}

// trimQuery strips surrounding whitespace and trailing semicolons so the
// query can be embedded in DECLARE
func trimQuery(query string) string {
	query = strings.TrimSpace(query)
	for strings.HasSuffix(query, ";") {
		query = strings.TrimSpace(strings.TrimSuffix(query, ";"))
	}
	return query
}

func (c *pgCursor) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	//nolint:gosec // cursor name is quoted with pq.QuoteIdentifier
	rows, err := c.tx.QueryContext(ctx, fmt.Sprintf("FETCH FORWARD %d FROM %s", c.prefetch, c.name))
	if err != nil {
		return nil, fmt.Errorf("%w: fetch failed: %w", ErrCursor, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCursor, err)
	}
	if len(columns) != 1 {
		return nil, fmt.Errorf("%w: expected a single JSON column, got %d columns", ErrCursor, len(columns))
	}

	result := make([]json.RawMessage, 0, c.prefetch)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: scan failed: %w", ErrCursor, err)
		}
		result = append(result, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCursor, err)
	}

	return result, nil
}

func (c *pgCursor) Close(ctx context.Context) error {
	if _, err := c.tx.ExecContext(ctx, "CLOSE "+c.name); err != nil {
		_ = c.tx.Rollback()
		return fmt.Errorf("%w: failed to close cursor: %w", ErrCursor, err)
	}
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", ErrCursor, err)
	}
	return nil
}

func (c *pgCursor) Abort() error {
	if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: rollback failed: %w", ErrCursor, err)
	}
	return nil
}
