// Package persistence provides SQLite-based world state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/effects"
	"github.com/talgya/metaverse/internal/engine"
	"github.com/talgya/metaverse/internal/volcano"
	"github.com/talgya/metaverse/internal/weather"
)

// World metadata keys.
const (
	metaLastTick      = "last_tick"
	metaEpoch         = "epoch"
	metaSeed          = "seed"
	metaWeather       = "weather_json"
	metaVolcanoes     = "volcanoes_json"
	metaEffects       = "effects_json"
	metaEventsThrough = "events_through"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

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
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		updated_tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		time TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type playerRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	X           float64 `db:"x"`
	Y           float64 `db:"y"`
	Z           float64 `db:"z"`
	UpdatedTick int64   `db:"updated_tick"`
}

func (r playerRow) player() engine.Player {
	return engine.Player{
		ID:          r.ID,
		Name:        r.Name,
		Position:    celestial.Vec3{X: r.X, Y: r.Y, Z: r.Z},
		UpdatedTick: uint64(r.UpdatedTick),
	}
}

func rowFor(p engine.Player) playerRow {
	return playerRow{
		ID: p.ID, Name: p.Name,
		X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z,
		UpdatedTick: int64(p.UpdatedTick),
	}
}

const upsertPlayer = `INSERT INTO players (id, name, x, y, z, updated_tick)
	VALUES (:id, :name, :x, :y, :z, :updated_tick)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name, x = excluded.x, y = excluded.y, z = excluded.z,
		updated_tick = excluded.updated_tick`

// SavePlayer inserts or updates a single player.
func (db *DB) SavePlayer(p engine.Player) error {
	_, err := db.conn.NamedExec(upsertPlayer, rowFor(p))
	return err
}

// SavePlayers writes all players to the database (full replace).
func (db *DB) SavePlayers(players []engine.Player) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM players"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(upsertPlayer)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range players {
		if _, err := stmt.Exec(rowFor(p)); err != nil {
			return fmt.Errorf("insert player %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// LoadPlayer returns one player, or ErrNotFound.
func (db *DB) LoadPlayer(id string) (engine.Player, error) {
	var row playerRow
	err := db.conn.Get(&row, "SELECT id, name, x, y, z, updated_tick FROM players WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Player{}, fmt.Errorf("player %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return engine.Player{}, err
	}
	return row.player(), nil
}

// LoadPlayers returns every player ordered by ID.
func (db *DB) LoadPlayers() ([]engine.Player, error) {
	var rows []playerRow
	if err := db.conn.Select(&rows, "SELECT id, name, x, y, z, updated_tick FROM players ORDER BY id"); err != nil {
		return nil, err
	}
	out := make([]engine.Player, len(rows))
	for i, r := range rows {
		out[i] = r.player()
	}
	return out, nil
}

// SaveEvents appends events newer than the last saved tick.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	through := int64(-1)
	if v, err := db.GetMeta(metaEventsThrough); err == nil {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			through = n
		}
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	latest := through
	for _, e := range events {
		if int64(e.Tick) <= through {
			continue
		}
		_, err := tx.Exec(
			"INSERT INTO events (tick, time, description, category) VALUES (?, ?, ?, ?)",
			e.Tick, e.Time.UTC().Format(time.RFC3339Nano), e.Description, e.Category,
		)
		if err != nil {
			return err
		}
		latest = max(latest, int64(e.Tick))
	}
	if latest > through {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
			metaEventsThrough, strconv.FormatInt(latest, 10)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type eventRow struct {
	Tick        int64  `db:"tick"`
	Time        string `db:"time"`
	Description string `db:"description"`
	Category    string `db:"category"`
}

// RecentEvents returns the most recent N events, oldest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT tick, time, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, len(rows))
	for i, r := range rows {
		t, _ := time.Parse(time.RFC3339Nano, r.Time)
		events[len(rows)-1-i] = engine.Event{
			Tick:        uint64(r.Tick),
			Time:        t,
			Description: r.Description,
			Category:    r.Category,
		}
	}
	return events, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return value, err
}

func (db *DB) saveMetaJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return db.SaveMeta(key, string(raw))
}

func (db *DB) metaJSON(key string, v any) error {
	raw, err := db.GetMeta(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SaveWorldState performs a full save of all world state.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	return db.SaveState(sim.Capture())
}

// SaveState writes a captured state.
func (db *DB) SaveState(st engine.State) error {
	slog.Info("saving world state",
		"tick", humanize.Comma(int64(st.Tick)),
		"players", len(st.Players),
		"effects", len(st.Effects),
		"events", len(st.Events))

	if err := db.SavePlayers(st.Players); err != nil {
		return fmt.Errorf("save players: %w", err)
	}
	if err := db.SaveEvents(st.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta(metaLastTick, strconv.FormatUint(st.Tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta(metaEpoch, st.Epoch.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta(metaSeed, strconv.FormatInt(st.Seed, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.saveMetaJSON(metaWeather, st.Weather); err != nil {
		return err
	}
	if err := db.saveMetaJSON(metaVolcanoes, st.Volcanoes); err != nil {
		return err
	}
	if err := db.saveMetaJSON(metaEffects, st.Effects); err != nil {
		return err
	}

	slog.Info("world state saved")
	return nil
}

// HasWorldState reports whether a previous run saved state.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta(metaLastTick)
	return err == nil
}

// LoadState reads the last saved state. Events are the most recent 1000.
func (db *DB) LoadState() (engine.State, error) {
	var st engine.State

	tickStr, err := db.GetMeta(metaLastTick)
	if err != nil {
		return st, err
	}
	if st.Tick, err = strconv.ParseUint(tickStr, 10, 64); err != nil {
		return st, fmt.Errorf("parse last_tick: %w", err)
	}
	if v, err := db.GetMeta(metaEpoch); err == nil {
		if st.Epoch, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return st, fmt.Errorf("parse epoch: %w", err)
		}
	}
	if v, err := db.GetMeta(metaSeed); err == nil {
		if st.Seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return st, fmt.Errorf("parse seed: %w", err)
		}
	}

	var w weather.State
	if err := db.metaJSON(metaWeather, &w); err != nil && !errors.Is(err, ErrNotFound) {
		return st, err
	}
	st.Weather = w
	var vs []volcano.Volcano
	if err := db.metaJSON(metaVolcanoes, &vs); err != nil && !errors.Is(err, ErrNotFound) {
		return st, err
	}
	st.Volcanoes = vs
	var fx []effects.Effect
	if err := db.metaJSON(metaEffects, &fx); err != nil && !errors.Is(err, ErrNotFound) {
		return st, err
	}
	st.Effects = fx

	if st.Players, err = db.LoadPlayers(); err != nil {
		return st, fmt.Errorf("load players: %w", err)
	}
	if st.Events, err = db.RecentEvents(1000); err != nil {
		return st, fmt.Errorf("load events: %w", err)
	}
	return st, nil
}
