// Package sqlstore implements the score store and bonus ledger on SQL databases.
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite) and "pgx"
// (PostgreSQL through jackc/pgx). Each stream is a table named after it.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/adapters/repository/sqlstore/migrations"
	"github.com/okian/podium/internal/domain/model"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var streamName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store persists score streams in SQL tables.
type Store struct {
	db      *sqlx.DB
	streams map[string]struct{}
	create  bool
	migrate bool
}

var _ repository.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithStreams names the stream tables the store may touch.
func WithStreams(streams ...string) Option {
	return func(s *Store) {
		for _, name := range streams {
			if name != "" {
				s.streams[name] = struct{}{}
			}
		}
	}
}

// WithCreateStreamTables creates missing stream tables at startup.
// Production stream tables belong to the game services; this is for local runs and tests.
func WithCreateStreamTables(enabled bool) Option {
	return func(s *Store) { s.create = enabled }
}

// WithMigrations toggles the embedded ledger migrations. On by default.
func WithMigrations(enabled bool) Option {
	return func(s *Store) { s.migrate = enabled }
}

// Open connects to dsn with driver and prepares the schema.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if driver == DriverSQLite {
		// single writer; busy_timeout covers the rest
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	s, err := New(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle.
func New(ctx context.Context, db *sqlx.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, streams: make(map[string]struct{}), migrate: true}
	for _, opt := range opts {
		opt(s)
	}
	for name := range s.streams {
		if !streamName.MatchString(name) {
			return nil, fmt.Errorf("%w: invalid table name %q", repository.ErrUnknownStream, name)
		}
	}
	if s.migrate {
		if err := ApplyMigrations(ctx, db, migrations.FS, "."); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	if s.create {
		for name := range s.streams {
			if err := s.createStreamTable(ctx, name); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func (s *Store) createStreamTable(ctx context.Context, name string) error {
	idColumn := "id INTEGER PRIMARY KEY"
	if s.db.DriverName() == DriverPostgres {
		idColumn = "id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS "` + name + `" (
    ` + idColumn + `,
    player_id TEXT NOT NULL,
    player_name TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL,
    value BIGINT NOT NULL,
    recorded_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS "` + name + `_player_session_idx" ON "` + name + `" (player_id, session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create stream table %s: %w", name, err)
		}
	}
	return nil
}

// DB exposes the shared handle, e.g. for the SQL ledger.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) table(stream string) (string, error) {
	if _, ok := s.streams[stream]; !ok {
		return "", fmt.Errorf("%w: %q", repository.ErrUnknownStream, stream)
	}
	return `"` + stream + `"`, nil
}

type sumRow struct {
	PlayerID   string         `db:"player_id"`
	PlayerName sql.NullString `db:"player_name"`
	Total      int64          `db:"total"`
}

// SumByPlayer implements repository.Store.
func (s *Store) SumByPlayer(ctx context.Context, stream string) (map[string]model.PlayerSum, error) {
	t, err := s.table(stream)
	if err != nil {
		return nil, err
	}

	var rows []sumRow
	q := `SELECT player_id, MAX(player_name) AS player_name, CAST(COALESCE(SUM(value), 0) AS BIGINT) AS total
FROM ` + t + ` GROUP BY player_id`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("sum %s: %w", stream, err)
	}

	out := make(map[string]model.PlayerSum, len(rows))
	for _, r := range rows {
		out[r.PlayerID] = model.PlayerSum{PlayerName: r.PlayerName.String, Total: r.Total}
	}
	return out, nil
}

// AddToScore implements repository.Store.
func (s *Store) AddToScore(ctx context.Context, stream, playerID, sessionID string, delta int64) (int64, error) {
	t, err := s.table(stream)
	if err != nil {
		return 0, err
	}

	q := s.db.Rebind(`UPDATE ` + t + ` SET value = value + ?
WHERE id = (SELECT id FROM ` + t + ` WHERE player_id = ? AND session_id = ? ORDER BY recorded_at, id LIMIT 1)`)
	res, err := s.db.ExecContext(ctx, q, delta, playerID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("add to score %s: %w", stream, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("add to score %s: rows affected: %w", stream, err)
	}
	return n, nil
}

// Append implements repository.Store.
func (s *Store) Append(ctx context.Context, rec model.ScoreRecord) error {
	t, err := s.table(rec.StreamID)
	if err != nil {
		return err
	}
	at := rec.RecordedAt
	if at.IsZero() {
		at = time.Now()
	}
	q := s.db.Rebind(`INSERT INTO ` + t + ` (player_id, player_name, session_id, value, recorded_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, rec.PlayerID, rec.PlayerName, rec.SessionID, rec.Value, toMillis(at)); err != nil {
		return fmt.Errorf("append %s: %w", rec.StreamID, err)
	}
	return nil
}

// Ping implements repository.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
