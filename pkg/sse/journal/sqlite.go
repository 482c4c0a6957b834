package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)
)

// SQLite driver names accepted in SQLiteConfig.Driver.
const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// SQLiteConfig contains configuration for the SQLite journal.
type SQLiteConfig struct {
	// Path is the database file path. ":memory:" keeps the journal in memory.
	Path string

	// Driver selects the database/sql driver: DriverCGO or DriverPureGo.
	// Default: DriverPureGo
	Driver string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/journal.db",
		Driver:       DriverPureGo,
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS sse_events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	stream     TEXT    NOT NULL,
	event_id   TEXT    NOT NULL,
	name       TEXT    NOT NULL DEFAULT '',
	data       BLOB,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sse_events_stream_id ON sse_events(stream, event_id);
CREATE INDEX IF NOT EXISTS idx_sse_events_created_at ON sse_events(created_at);
`

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverPureGo
	}
	if config.Driver != DriverCGO && config.Driver != DriverPureGo {
		return nil, fmt.Errorf("unknown sqlite driver %q", config.Driver)
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 4
	}
	if config.Path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		config.MaxOpenConns = 1
	}

	logger := slog.Default().With("component", "sse.journal.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStore{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite journal initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode && s.config.Path != ":memory:" {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newStorageError("sqlite", "enable_wal", err)
		}
	}
	if s.config.BusyTimeout > 0 {
		q := fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())
		if _, err := s.db.Exec(q); err != nil {
			return newStorageError("sqlite", "set_busy_timeout", err)
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return newStorageError("sqlite", "create_schema", err)
	}
	return nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sse_events (stream, event_id, name, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Stream, e.ID, e.Name, e.Data, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return newStorageError("sqlite", "append", err)
	}
	return nil
}

// Since implements Store.
func (s *SQLiteStore) Since(ctx context.Context, stream, afterID string, limit int) ([]Entry, error) {
	var after int64
	if afterID != "" {
		err := s.db.QueryRowContext(ctx,
			`SELECT seq FROM sse_events WHERE stream = ? AND event_id = ?`,
			stream, afterID,
		).Scan(&after)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, newStorageError("sqlite", "lookup", err)
		}
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT stream, event_id, name, data, created_at FROM sse_events
		 WHERE stream = ? AND seq > ? ORDER BY seq LIMIT ?`,
		stream, after, limit,
	)
	if err != nil {
		return nil, newStorageError("sqlite", "since", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
		)
		if err := rows.Scan(&e.Stream, &e.ID, &e.Name, &e.Data, &created); err != nil {
			return nil, newStorageError("sqlite", "scan", err)
		}
		e.CreatedAt = time.Unix(0, created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "since", err)
	}
	return out, nil
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sse_events WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, newStorageError("sqlite", "prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError("sqlite", "prune", err)
	}
	return n, nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return newStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return newStorageError("sqlite", "close", err)
	}
	return nil
}
