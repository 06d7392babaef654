package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/mpue/citysim/internal/engine"
	"github.com/mpue/citysim/internal/entropy"
	"github.com/mpue/citysim/internal/grid"
	"github.com/mpue/citysim/internal/tuning"
)

func testCity(t *testing.T, seed int64) *engine.City {
	t.Helper()
	cfg := tuning.Default()
	cfg.GridWidth = 10
	cfg.GridHeight = 10
	return engine.NewCity(cfg, entropy.NewSeeded(seed), seed)
}

func populate(t *testing.T, c *engine.City) {
	t.Helper()
	if err := c.PlaceTile(2, 2, grid.PowerPlant); err != nil {
		t.Fatalf("plant: %v", err)
	}
	for y := 1; y <= 4; y++ {
		if err := c.PlaceTile(4, y, grid.Road); err != nil {
			t.Fatalf("road: %v", err)
		}
		if err := c.PlaceTile(5, y, grid.Residential); err != nil {
			t.Fatalf("residential: %v", err)
		}
	}
	for i := 0; i < 50; i++ {
		c.Step()
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := testCity(t, 11)
	populate(t, src)

	var buf bytes.Buffer
	if err := Encode(&buf, Capture(src)); err != nil {
		t.Fatalf("encode: %v", err)
	}

	snap, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Version != Version {
		t.Fatalf("version = %d, want %d", snap.Version, Version)
	}

	dst := testCity(t, 99)
	if err := Restore(dst, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if src.StateDigest() != dst.StateDigest() {
		t.Fatalf("restored digest differs from source")
	}
}

func TestWriteReadFile(t *testing.T) {
	src := testCity(t, 5)
	populate(t, src)

	path := filepath.Join(t.TempDir(), "saves", "city.zst")
	if err := WriteFile(path, Capture(src)); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	dst := testCity(t, 6)
	if err := Restore(dst, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if src.StateDigest() != dst.StateDigest() {
		t.Fatalf("file round trip changed the state")
	}
}

func TestRestoreToleratesUnknownTileType(t *testing.T) {
	src := testCity(t, 1)
	snap := Capture(src)
	snap.Tiles[0].Type = "fusion_reactor"
	snap.Tiles[1].Type = "road"

	dst := testCity(t, 2)
	if err := Restore(dst, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if dst.QueryTile(0, 0).Type != "empty" {
		t.Fatalf("unknown type should fall back to empty land")
	}
	if dst.QueryTile(1, 0).Type != "road" {
		t.Fatalf("known types must survive")
	}
}

func TestRestoreClampsBadLightPhase(t *testing.T) {
	src := testCity(t, 1)
	snap := Capture(src)
	snap.Tiles[3].Type = "road"
	snap.Tiles[3].LightPhase = 42

	dst := testCity(t, 2)
	if err := Restore(dst, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := dst.QueryTile(3, 0).TrafficLightPhase; got != 0 {
		t.Fatalf("light phase = %d, want reset to none", got)
	}
}

func TestRestoreOldSaveRecomputesHappiness(t *testing.T) {
	src := testCity(t, 1)
	populate(t, src)
	snap := Capture(src)
	snap.Happiness = 0 // field absent in pre-versioned saves

	dst := testCity(t, 2)
	if err := Restore(dst, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	// A populated, serviceless town never scores a literal 0-by-omission.
	if got := dst.Stats().Happiness; got <= 0 || got > 100 {
		t.Fatalf("recomputed happiness = %d, want a real in-range score", got)
	}
}

func TestRestoreRejectsDimensionMismatch(t *testing.T) {
	src := testCity(t, 1)
	snap := Capture(src)
	snap.Width = 8
	snap.Height = 8
	snap.Tiles = snap.Tiles[:64]

	dst := testCity(t, 2)
	if err := Restore(dst, snap); err == nil {
		t.Fatalf("expected error for mismatched grid size")
	}
}

func TestDecodeGarbageFails(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}
