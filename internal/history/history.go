// Package history keeps a SQLite ledger of processed episodes.
// One row per player URL; recording the same URL again replaces the row.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/mo"
	_ "modernc.org/sqlite"

	"stream2media/internal/config"
)

// Status is the outcome of processing an episode.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Entry is one ledger row.
type Entry struct {
	Provider    string    `json:"provider"`
	Title       string    `json:"title"`
	Label       string    `json:"label"`
	DubGroup    string    `json:"dub_group"`
	URL         string    `json:"url"` // player page URL, the row key
	OutputPath  string    `json:"output_path,omitempty"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Ledger is an open history database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history: %w", err)
	}
	return &Ledger{db: db}, nil
}

// OpenDefault opens the ledger at config.HistoryPath.
func OpenDefault() (*Ledger, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS processed (
		url          TEXT PRIMARY KEY,
		provider     TEXT NOT NULL,
		title        TEXT NOT NULL,
		label        TEXT NOT NULL,
		dub_group    TEXT NOT NULL,
		output_path  TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		error        TEXT NOT NULL DEFAULT '',
		processed_at INTEGER NOT NULL
	)`)
	return err
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts e or replaces the row with the same URL.
// A zero ProcessedAt is set to the current time.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.URL == "" {
		return errors.New("history entry has no url")
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO processed (url, provider, title, label, dub_group, output_path, status, error, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
			provider = excluded.provider,
			title = excluded.title,
			label = excluded.label,
			dub_group = excluded.dub_group,
			output_path = excluded.output_path,
			status = excluded.status,
			error = excluded.error,
			processed_at = excluded.processed_at`,
		e.URL, e.Provider, e.Title, e.Label, e.DubGroup, e.OutputPath,
		string(e.Status), e.Error, e.ProcessedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording history: %w", err)
	}
	return nil
}

// List returns entries, newest first. limit <= 0 means all.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT url, provider, title, label, dub_group, output_path, status, error, processed_at
		FROM processed ORDER BY processed_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Lookup returns the row for url, if any.
func (l *Ledger) Lookup(ctx context.Context, url string) (mo.Option[Entry], error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT url, provider, title, label, dub_group, output_path, status, error, processed_at
		 FROM processed WHERE url = ?`, url)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[Entry](), nil
	}
	if err != nil {
		return mo.None[Entry](), err
	}
	return mo.Some(e), nil
}

// Remove deletes the row for url. Removing a missing row is not an error.
func (l *Ledger) Remove(ctx context.Context, url string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM processed WHERE url = ?`, url); err != nil {
		return fmt.Errorf("removing history entry: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e      Entry
		status string
		nanos  int64
	)
	err := s.Scan(&e.URL, &e.Provider, &e.Title, &e.Label, &e.DubGroup,
		&e.OutputPath, &status, &e.Error, &nanos)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("reading history row: %w", err)
	}
	e.Status = Status(status)
	e.ProcessedAt = time.Unix(0, nanos)
	return e, nil
}

// FormatForDisplay renders entries for a selection prompt.
func FormatForDisplay(entries []Entry) []string {
	var items []string
	for _, e := range entries {
		display := fmt.Sprintf("%s - %s [%s]", e.Title, e.Label, e.DubGroup)
		if e.Status == StatusFailed {
			display += " (failed)"
		}
		items = append(items, fmt.Sprintf("%s  %s", e.ProcessedAt.Format("2006-01-02 15:04"), display))
	}
	return items
}
