// Package journal keeps a local SQLite record of write attempts made through
// the service. Posts themselves are never stored here.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blackmichael/onchain-posts/internal/contract"
	"github.com/blackmichael/onchain-posts/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS writes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT    NOT NULL,
	account    TEXT    NOT NULL,
	author     TEXT    NOT NULL DEFAULT '',
	post_id    INTEGER NOT NULL DEFAULT 0,
	outcome    TEXT    NOT NULL,
	error      TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS writes_created_at ON writes (created_at);`

// Journal implements domain.Recorder on SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path. The caller should
// call Close when the journal is no longer needed.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// SQLite allows a single writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends a write attempt.
func (j *Journal) Record(ctx context.Context, a domain.WriteAttempt) error {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO writes (kind, account, author, post_id, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(a.Kind),
		string(a.Account),
		string(a.Author),
		int64(a.PostID),
		string(a.Outcome),
		a.Error,
		at.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert write: %w", err)
	}
	return nil
}

// Recent returns up to limit write attempts, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.WriteAttempt, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, account, author, post_id, outcome, error, created_at
		FROM writes
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query writes (limit=%d): %w", limit, err)
	}
	defer rows.Close()

	var out []domain.WriteAttempt
	for rows.Next() {
		var a domain.WriteAttempt
		var kind, account, author, outcome string
		var postID, createdAt int64
		if err := rows.Scan(&kind, &account, &author, &postID, &outcome, &a.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan write: %w", err)
		}
		a.Kind = domain.WriteKind(kind)
		a.Account = domain.Account(account)
		a.Author = domain.Account(author)
		a.PostID = uint64(postID)
		a.Outcome = domain.WriteOutcome(outcome)
		a.At = time.UnixMilli(createdAt).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate writes: %w", err)
	}
	return out, nil
}

// Nop is a Recorder that keeps nothing. It is used when no journal path is
// configured.
type Nop struct{}

func (Nop) Record(context.Context, domain.WriteAttempt) error { return nil }

// Complete stamps a with the current time and the outcome of the write that
// returned err.
func Complete(a domain.WriteAttempt, err error) domain.WriteAttempt {
	a.At = time.Now().UTC()
	switch {
	case err == nil:
		a.Outcome = domain.OutcomeOK
		return a
	case errors.Is(err, contract.ErrRejected):
		a.Outcome = domain.OutcomeRejected
	default:
		a.Outcome = domain.OutcomeFailed
	}
	a.Error = err.Error()
	return a
}
