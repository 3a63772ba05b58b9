package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

// AuditStore records every tool-issued query in a local SQLite database.
// Auditing is best-effort: recording failures are reported to stderr and
// never fail the query they describe.
type AuditStore struct {
	db *sql.DB
}

// AuditEntry is one recorded query execution.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Tool       string    `json:"tool"`
	Query      string    `json:"query"`
	DurationMs int64     `json:"duration_ms"`
	RowCount   int       `json:"row_count"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// openAuditStore opens (creating if needed) the audit database at path.
func openAuditStore(path string) (*AuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	store := &AuditStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return store, nil
}

// Close closes the audit database.
func (a *AuditStore) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *AuditStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		tool TEXT NOT NULL,
		query TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		row_count INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_query_log_timestamp ON query_log(timestamp);
	CREATE INDEX IF NOT EXISTS idx_query_log_tool ON query_log(tool);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Record appends one entry. A nil store is a no-op so call sites need no
// enabled/disabled branching.
func (a *AuditStore) Record(ctx context.Context, tool, query string, duration time.Duration, rowCount int, execErr error) {
	if a == nil || a.db == nil {
		return
	}

	errText := ""
	if execErr != nil {
		errText = execErr.Error()
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO query_log (timestamp, tool, query, duration_ms, row_count, success, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		tool,
		query,
		duration.Milliseconds(),
		rowCount,
		boolToInt(execErr == nil),
		errText,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to record audit entry: %v\n", err)
	}
}

// Recent returns the most recent entries, newest first.
func (a *AuditStore) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("query auditing is not enabled")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, timestamp, tool, query, duration_ms, row_count, success, error
		 FROM query_log
		 ORDER BY id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts string
		var success int
		var errText sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Tool, &e.Query, &e.DurationMs, &e.RowCount, &success, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = parsed
		}
		e.Success = success == 1
		if errText.Valid {
			e.Error = errText.String
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
