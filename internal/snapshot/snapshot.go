// Package snapshot serializes the full city state to zstd-compressed JSON.
// Loading is deliberately forgiving: fields absent from older saves are
// defaulted, unknown tile types fall back to empty land, and derived state
// is recomputed on restore instead of trusted.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/mpue/citysim/internal/engine"
	"github.com/mpue/citysim/internal/grid"
)

// Version is the current snapshot format version.
const Version = 1

// SnapshotV1 is the on-disk city save.
type SnapshotV1 struct {
	Version int    `json:"version"`
	CityID  string `json:"city_id,omitempty"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Tick      uint64 `json:"tick"`
	Year      int    `json:"year,omitempty"`
	Month     int    `json:"month,omitempty"`
	Money     int    `json:"money"`
	Loan      int    `json:"loan,omitempty"`
	Happiness int    `json:"happiness,omitempty"`

	Tiles []TileV1 `json:"tiles"`
}

// TileV1 carries every persisted tile field. Powered and traffic state are
// serialized for snapshot convenience but recomputed on load.
type TileV1 struct {
	Type           string `json:"type"`
	Powered        bool   `json:"powered,omitempty"`
	Development    int    `json:"development,omitempty"`
	Population     int    `json:"population,omitempty"`
	Variant        int    `json:"variant,omitempty"`
	TrafficDensity int    `json:"traffic_density,omitempty"`
	LightPhase     int    `json:"light_phase,omitempty"`
	PowerLine      bool   `json:"power_line,omitempty"`
}

// Capture builds a snapshot from the current city state.
func Capture(c *engine.City) SnapshotV1 {
	s := c.ExportState()
	snap := SnapshotV1{
		Version:   Version,
		CityID:    s.ID,
		Width:     s.Width,
		Height:    s.Height,
		Tick:      s.Tick,
		Year:      s.Year,
		Month:     s.Month,
		Money:     s.Money,
		Loan:      s.Loan,
		Happiness: s.Happiness,
		Tiles:     make([]TileV1, len(s.Tiles)),
	}
	for i, t := range s.Tiles {
		snap.Tiles[i] = TileV1{
			Type:           t.Type.String(),
			Powered:        t.Powered,
			Development:    t.Development,
			Population:     t.Population,
			Variant:        t.Variant,
			TrafficDensity: t.TrafficDensity,
			LightPhase:     int(t.TrafficLightPhase),
			PowerLine:      t.HasPowerLine,
		}
	}
	return snap
}

// Restore applies a snapshot to a city. Missing optional fields keep their
// zero values and are normalized by the engine; a malformed tile never
// fails the whole load.
func Restore(c *engine.City, snap SnapshotV1) error {
	tiles := make([]grid.Tile, len(snap.Tiles))
	for i, tv := range snap.Tiles {
		tt, ok := grid.TypeFromString(tv.Type)
		if !ok {
			tt = grid.Empty
		}
		phase := grid.LightPhase(tv.LightPhase)
		if phase > grid.LightRedEW {
			phase = grid.LightNone
		}
		tiles[i] = grid.Tile{
			Type:              tt,
			Powered:           tv.Powered,
			Development:       tv.Development,
			Population:        tv.Population,
			Variant:           tv.Variant,
			TrafficDensity:    tv.TrafficDensity,
			TrafficLightPhase: phase,
			HasPowerLine:      tv.PowerLine,
		}
	}

	happiness := snap.Happiness
	if happiness == 0 && snap.Tick > 0 {
		// Older saves did not record happiness; force a recompute.
		happiness = -1
	}

	return c.RestoreState(engine.State{
		ID:        snap.CityID,
		Width:     snap.Width,
		Height:    snap.Height,
		Tick:      snap.Tick,
		Year:      snap.Year,
		Month:     snap.Month,
		Money:     snap.Money,
		Loan:      snap.Loan,
		Happiness: happiness,
		Tiles:     tiles,
	})
}

// Encode writes a compressed snapshot to w.
func Encode(w io.Writer, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("snapshot encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Decode reads a compressed snapshot from r.
func Decode(r io.Reader) (SnapshotV1, error) {
	var snap SnapshotV1
	dec, err := zstd.NewReader(r)
	if err != nil {
		return snap, err
	}
	defer dec.Close()
	if err := json.NewDecoder(bufio.NewReaderSize(dec, 64*1024)).Decode(&snap); err != nil {
		return snap, fmt.Errorf("snapshot decode: %w", err)
	}
	if snap.Version == 0 {
		snap.Version = 1 // pre-versioned saves
	}
	return snap, nil
}

// WriteFile saves a snapshot to disk, creating parent directories.
func WriteFile(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return Encode(f, snap)
}

// ReadFile loads a snapshot from disk.
func ReadFile(path string) (SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return SnapshotV1{}, err
	}
	defer f.Close()
	return Decode(f)
}
