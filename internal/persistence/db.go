// Package persistence provides SQLite-based city state storage.
package persistence

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mpue/citysim/internal/engine"
	"github.com/mpue/citysim/internal/grid"
)

// DB wraps a SQLite connection for city state persistence.
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
	CREATE TABLE IF NOT EXISTS tiles (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		type TEXT NOT NULL,
		development INTEGER NOT NULL,
		population INTEGER NOT NULL,
		variant INTEGER NOT NULL,
		traffic_density INTEGER NOT NULL,
		light_phase INTEGER NOT NULL,
		power_line INTEGER NOT NULL,
		powered INTEGER NOT NULL,
		PRIMARY KEY (x, y)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS city_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// HasCityState reports whether a saved city exists in this database.
func (db *DB) HasCityState() bool {
	var count int
	if err := db.conn.Get(&count, "SELECT COUNT(*) FROM tiles"); err != nil {
		return false
	}
	return count > 0
}

// SaveCity writes the full city state (tiles replaced wholesale, metadata
// upserted) in one transaction.
func (db *DB) SaveCity(c *engine.City) error {
	s := c.ExportState()

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tiles"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO tiles
		(x, y, type, development, population, variant,
		 traffic_density, light_phase, power_line, powered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range s.Tiles {
		x := i % s.Width
		y := i / s.Width
		_, err := stmt.Exec(
			x, y, t.Type.String(), t.Development, t.Population, t.Variant,
			t.TrafficDensity, int(t.TrafficLightPhase),
			boolInt(t.HasPowerLine), boolInt(t.Powered),
		)
		if err != nil {
			return fmt.Errorf("insert tile (%d,%d): %w", x, y, err)
		}
	}

	meta := map[string]string{
		"city_id":   s.ID,
		"width":     fmt.Sprintf("%d", s.Width),
		"height":    fmt.Sprintf("%d", s.Height),
		"tick":      fmt.Sprintf("%d", s.Tick),
		"year":      fmt.Sprintf("%d", s.Year),
		"month":     fmt.Sprintf("%d", s.Month),
		"money":     fmt.Sprintf("%d", s.Money),
		"loan":      fmt.Sprintf("%d", s.Loan),
		"happiness": fmt.Sprintf("%d", s.Happiness),
	}
	for k, v := range meta {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO city_meta (key, value) VALUES (?, ?)", k, v,
		); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if err := db.SaveEvents(c.DrainEvents()); err != nil {
		return fmt.Errorf("save events: %w", err)
	}

	slog.Info("city state saved", "tick", s.Tick, "population", countPopulation(s.Tiles))
	return nil
}

// LoadCity restores the saved state into the given freshly created city.
func (db *DB) LoadCity(c *engine.City) error {
	type tileRow struct {
		X              int    `db:"x"`
		Y              int    `db:"y"`
		Type           string `db:"type"`
		Development    int    `db:"development"`
		Population     int    `db:"population"`
		Variant        int    `db:"variant"`
		TrafficDensity int    `db:"traffic_density"`
		LightPhase     int    `db:"light_phase"`
		PowerLine      int    `db:"power_line"`
		Powered        int    `db:"powered"`
	}

	var rows []tileRow
	if err := db.conn.Select(&rows, "SELECT * FROM tiles ORDER BY y, x"); err != nil {
		return fmt.Errorf("load tiles: %w", err)
	}

	width := db.metaInt("width", 0)
	height := db.metaInt("height", 0)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("load: missing grid dimensions")
	}

	tiles := make([]grid.Tile, width*height)
	for _, r := range rows {
		if r.X < 0 || r.X >= width || r.Y < 0 || r.Y >= height {
			continue // tolerate rows from a differently sized save
		}
		tt, ok := grid.TypeFromString(r.Type)
		if !ok {
			tt = grid.Empty
		}
		tiles[r.Y*width+r.X] = grid.Tile{
			Type:              tt,
			Powered:           r.Powered != 0,
			Development:       r.Development,
			Population:        r.Population,
			Variant:           r.Variant,
			TrafficDensity:    r.TrafficDensity,
			TrafficLightPhase: grid.LightPhase(r.LightPhase),
			HasPowerLine:      r.PowerLine != 0,
		}
	}

	id, _ := db.GetMeta("city_id")
	state := engine.State{
		ID:        id,
		Width:     width,
		Height:    height,
		Tick:      uint64(db.metaInt("tick", 0)),
		Year:      db.metaInt("year", 1),
		Month:     db.metaInt("month", 1),
		Money:     db.metaInt("money", 0),
		Loan:      db.metaInt("loan", 0),
		Happiness: db.metaInt("happiness", -1),
		Tiles:     tiles,
	}
	if err := c.RestoreState(state); err != nil {
		return err
	}

	slog.Info("city state restored", "tick", state.Tick, "sim_time", engine.SimDate(state.Tick))
	return nil
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in city metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO city_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM city_meta WHERE key = ?", key)
	return value, err
}

func (db *DB) metaInt(key string, fallback int) int {
	raw, err := db.GetMeta(key)
	if err != nil {
		return fallback
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return fallback
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func countPopulation(tiles []grid.Tile) int {
	total := 0
	for i := range tiles {
		total += tiles[i].Population
	}
	return total
}
