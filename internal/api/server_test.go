package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mpue/citysim/internal/engine"
	"github.com/mpue/citysim/internal/entropy"
	"github.com/mpue/citysim/internal/tuning"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := tuning.Default()
	cfg.GridWidth = 10
	cfg.GridHeight = 10
	city := engine.NewCity(cfg, entropy.NewSeeded(1), 1)
	return &Server{City: city, AdminKey: "sekrit"}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["happiness"].(float64) != 100 {
		t.Fatalf("happiness = %v, want 100 for a fresh city", body["happiness"])
	}
	if body["money_display"].(string) != "10,000" {
		t.Fatalf("money_display = %v, want 10,000", body["money_display"])
	}
}

func TestBuildEndpoint(t *testing.T) {
	s := testServer(t)

	rec := postJSON(t, s.handleBuild, "/api/v1/build", buildRequest{X: 3, Y: 3, Type: "road"})
	if rec.Code != http.StatusOK {
		t.Fatalf("build status = %d: %s", rec.Code, rec.Body.String())
	}
	if s.City.QueryTile(3, 3).Type != "road" {
		t.Fatalf("road not placed")
	}
}

func TestBuildRejectsUnknownType(t *testing.T) {
	s := testServer(t)
	rec := postJSON(t, s.handleBuild, "/api/v1/build", buildRequest{X: 3, Y: 3, Type: "casino"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBuildErrorMapping(t *testing.T) {
	s := testServer(t)

	// Occupied tile -> conflict.
	postJSON(t, s.handleBuild, "/api/v1/build", buildRequest{X: 3, Y: 3, Type: "road"})
	rec := postJSON(t, s.handleBuild, "/api/v1/build", buildRequest{X: 3, Y: 3, Type: "park"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("occupied status = %d, want 409", rec.Code)
	}

	// Out of range -> bad request.
	rec = postJSON(t, s.handleBuild, "/api/v1/build", buildRequest{X: 99, Y: 3, Type: "road"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range status = %d, want 400", rec.Code)
	}

	// Plant footprint at the corner -> conflict.
	rec = postJSON(t, s.handleBuild, "/api/v1/build", buildRequest{X: 0, Y: 0, Type: "power_plant"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("footprint status = %d, want 409", rec.Code)
	}
}

func TestBuildRequiresPost(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/build", nil)
	rec := httptest.NewRecorder()
	s.handleBuild(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestTileEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tile/4/5", nil)
	rec := httptest.NewRecorder()
	s.handleTile(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap engine.TileSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.X != 4 || snap.Y != 5 {
		t.Fatalf("snapshot coords = (%d,%d)", snap.X, snap.Y)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tile/40/5", nil)
	rec = httptest.NewRecorder()
	s.handleTile(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("out-of-range status = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tile/abc/def", nil)
	rec = httptest.NewRecorder()
	s.handleTile(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric status = %d, want 400", rec.Code)
	}
}

func TestGridEndpoint(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/grid", nil)
	rec := httptest.NewRecorder()
	s.handleGrid(rec, req)

	var body struct {
		Width  int                   `json:"width"`
		Height int                   `json:"height"`
		Tiles  []engine.TileSnapshot `json:"tiles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Width != 10 || body.Height != 10 || len(body.Tiles) != 100 {
		t.Fatalf("grid = %dx%d with %d tiles", body.Width, body.Height, len(body.Tiles))
	}
}

func TestLoanEndpoint(t *testing.T) {
	s := testServer(t)

	rec := postJSON(t, s.handleLoan, "/api/v1/loan", loanRequest{Amount: 5000})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if s.City.Stats().Loan != 5000 {
		t.Fatalf("loan not taken")
	}

	rec = postJSON(t, s.handleLoan, "/api/v1/loan", loanRequest{Amount: 2000, Repay: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if s.City.Stats().Loan != 3000 {
		t.Fatalf("loan = %d, want 3000 after repayment", s.City.Stats().Loan)
	}
}

func TestAdminAuth(t *testing.T) {
	s := testServer(t)
	s.Loop = engine.NewLoop(s.City)
	handler := s.adminOnly(s.handleSpeed)

	raw, _ := json.Marshal(speedRequest{Speed: 4})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/speed", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/speed", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/speed", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authorized status = %d, want 200", rec.Code)
	}
	if s.Loop.Speed != 4 {
		t.Fatalf("speed = %v, want 4", s.Loop.Speed)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("request over the limit should be rejected")
	}
	// Other IPs have their own bucket.
	if !rl.Allow("10.0.0.2") {
		t.Fatalf("separate client should not be limited")
	}
	if rl.RetryAfter("10.0.0.1") <= 0 {
		t.Fatalf("exhausted bucket should report a retry delay")
	}
}
