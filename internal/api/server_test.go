package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/bawdyanarchist/minesim/internal/config"
	"github.com/bawdyanarchist/minesim/internal/metrics"
	"github.com/bawdyanarchist/minesim/internal/registry"
)

func testServer() *Server {
	cfg := &config.Config{API: config.APIConfig{Enabled: true, Bind: ":0"}}
	reg := registry.New("", "", 0)
	return NewServer(cfg, reg)
}

func TestHandleStatusTalliesEveryRound(t *testing.T) {
	s := testServer()
	s.registry.SetQueued("r0")
	s.registry.SetRunning("r1")
	s.registry.SetDone("r2", metrics.RoundSummary{})
	s.registry.SetPartial("r3", nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/status", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Total != 4 || resp.Queued != 1 || resp.Running != 1 || resp.Done != 1 || resp.Partial != 1 {
		t.Errorf("unexpected tally: %+v", resp)
	}
}

func TestHandleRoundNotFound(t *testing.T) {
	s := testServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/rounds/missing", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleRoundSummaryRequiresCompletion(t *testing.T) {
	s := testServer()
	s.registry.SetRunning("r0")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/rounds/r0/summary", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != 404 {
		t.Errorf("status = %d, want 404 for a round with no summary yet", w.Code)
	}
}

func TestHandleRoundSummaryReturnsComputedSummary(t *testing.T) {
	s := testServer()
	s.registry.SetDone("r0", metrics.RoundSummary{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/rounds/r0/summary", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHandleRoundsListsEveryRound(t *testing.T) {
	s := testServer()
	s.registry.SetQueued("r0")
	s.registry.SetQueued("r1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/rounds", nil)
	s.router.ServeHTTP(w, req)

	var resp struct {
		Rounds []registry.RoundState `json:"rounds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Rounds) != 2 {
		t.Errorf("len(rounds) = %d, want 2", len(resp.Rounds))
	}
}
