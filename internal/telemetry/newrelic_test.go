package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/bawdyanarchist/minesim/internal/config"
	"github.com/bawdyanarchist/minesim/internal/metrics"
)

func TestNewAPMAgent(t *testing.T) {
	cfg := &config.NewRelicConfig{Enabled: true, AppName: "test", LicenseKey: "test_key"}
	agent := NewAPMAgent(cfg)
	if agent == nil {
		t.Fatal("NewAPMAgent returned nil")
	}
	if agent.app != nil {
		t.Error("app should be nil before Start()")
	}
}

func TestStartDisabledIsNoOp(t *testing.T) {
	agent := NewAPMAgent(&config.NewRelicConfig{Enabled: false})
	if err := agent.Start(); err != nil {
		t.Errorf("Start() returned error when disabled: %v", err)
	}
	if agent.app != nil {
		t.Error("app should remain nil when disabled")
	}
}

func TestStartMissingLicenseKeyIsNoOp(t *testing.T) {
	agent := NewAPMAgent(&config.NewRelicConfig{Enabled: true, AppName: "test"})
	if err := agent.Start(); err != nil {
		t.Errorf("Start() returned error with empty license key: %v", err)
	}
	if agent.app != nil {
		t.Error("app should remain nil with no license key")
	}
}

func TestRecordRoundCompleteNoOpWithoutApp(t *testing.T) {
	agent := NewAPMAgent(&config.NewRelicConfig{Enabled: false})
	// Must not panic when the agent never connected.
	agent.RecordRoundComplete("r0", metrics.RoundSummary{})
	agent.RecordThroughput(12.5)
}

func TestMiddlewarePassesThroughWithoutApp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	agent := NewAPMAgent(&config.NewRelicConfig{Enabled: false})

	router := gin.New()
	router.Use(agent.Middleware())
	router.GET("/ok", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
