// Package persistence provides SQLite-based storage for classroom worlds:
// current student states, the event log, the snapshot time series, daily
// rollups, world clocks and the conversation semaphores.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/classroom/internal/engine"
)

// ErrNotFound is returned when a requested world does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection and implements engine.Store.
type DB struct {
	conn *sqlx.DB
}

var _ engine.Store = (*DB)(nil)

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	// Transactions start with BEGIN IMMEDIATE: a read-modify-write takes the
	// write lock before it reads, and other handles on the same file wait
	// for it.
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; transactions queue on the pool instead of
	// failing with SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS worlds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_states (
		world_id TEXT NOT NULL REFERENCES worlds(id),
		agent_id TEXT NOT NULL,
		name TEXT NOT NULL,
		class TEXT NOT NULL,
		traits_json TEXT NOT NULL,
		joy REAL NOT NULL,
		anxiety REAL NOT NULL,
		sadness REAL NOT NULL,
		anger REAL NOT NULL,
		stress REAL NOT NULL,
		energy REAL NOT NULL,
		risk REAL NOT NULL,
		ties_json TEXT NOT NULL,
		memory_json TEXT NOT NULL,
		last_event TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (world_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		world_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		time_ms INTEGER NOT NULL,
		end_ms INTEGER,
		target TEXT NOT NULL,
		actors_json TEXT NOT NULL,
		intensity REAL NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		time_ms INTEGER NOT NULL,
		joy REAL NOT NULL,
		anxiety REAL NOT NULL,
		sadness REAL NOT NULL,
		anger REAL NOT NULL,
		stress REAL NOT NULL,
		energy REAL NOT NULL,
		risk REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		world_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		day TEXT NOT NULL,
		stress_avg REAL NOT NULL,
		anxiety_avg REAL NOT NULL,
		joy_avg REAL NOT NULL,
		samples INTEGER NOT NULL,
		events_count INTEGER NOT NULL,
		UNIQUE (world_id, agent_id, day)
	);

	CREATE TABLE IF NOT EXISTS world_clocks (
		world_id TEXT PRIMARY KEY,
		time_scale REAL NOT NULL,
		world_now_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS semaphores (
		world_id TEXT NOT NULL,
		name TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (world_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_events_world_time ON events(world_id, time_ms);
	CREATE INDEX IF NOT EXISTS idx_snapshots_world_time ON snapshots(world_id, time_ms);
	CREATE INDEX IF NOT EXISTS idx_snapshots_world_agent ON snapshots(world_id, agent_id, time_ms);
	CREATE INDEX IF NOT EXISTS idx_daily_world_day ON daily_stats(world_id, day);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// CreateWorld registers a world. Registering an existing ID is a no-op.
func (db *DB) CreateWorld(ctx context.Context, w engine.World) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO worlds (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING",
		w.ID, w.Name, toMillis(w.CreatedAt),
	)
	return err
}

type worldRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	CreatedAt int64  `db:"created_at"`
}

func (r worldRow) world() engine.World {
	return engine.World{ID: r.ID, Name: r.Name, CreatedAt: fromMillis(r.CreatedAt)}
}

// Worlds returns every world, oldest first.
func (db *DB) Worlds(ctx context.Context) ([]engine.World, error) {
	var rows []worldRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT id, name, created_at FROM worlds ORDER BY created_at, id"); err != nil {
		return nil, err
	}
	out := make([]engine.World, len(rows))
	for i, r := range rows {
		out[i] = r.world()
	}
	return out, nil
}

// World returns one world or ErrNotFound.
func (db *DB) World(ctx context.Context, id string) (engine.World, error) {
	var r worldRow
	err := db.conn.GetContext(ctx, &r, "SELECT id, name, created_at FROM worlds WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.World{}, fmt.Errorf("world %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return engine.World{}, err
	}
	return r.world(), nil
}

type clockRow struct {
	TimeScale   float64 `db:"time_scale"`
	WorldNowMs  int64   `db:"world_now_ms"`
	UpdatedAtMs int64   `db:"updated_at_ms"`
}

// Clock returns a world's stored clock settings.
func (db *DB) Clock(ctx context.Context, world string) (engine.Clock, bool, error) {
	var r clockRow
	err := db.conn.GetContext(ctx, &r,
		"SELECT time_scale, world_now_ms, updated_at_ms FROM world_clocks WHERE world_id = ?", world)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Clock{}, false, nil
	}
	if err != nil {
		return engine.Clock{}, false, err
	}
	return engine.Clock{
		TimeScale: r.TimeScale,
		WorldNow:  fromMillis(r.WorldNowMs),
		UpdatedAt: fromMillis(r.UpdatedAtMs),
	}, true, nil
}

// SaveClock stores a world's clock settings.
func (db *DB) SaveClock(ctx context.Context, world string, c engine.Clock) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO world_clocks (world_id, time_scale, world_now_ms, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(world_id) DO UPDATE SET
			time_scale = excluded.time_scale,
			world_now_ms = excluded.world_now_ms,
			updated_at_ms = excluded.updated_at_ms`,
		world, c.TimeScale, toMillis(c.WorldNow), toMillis(c.UpdatedAt),
	)
	return err
}
