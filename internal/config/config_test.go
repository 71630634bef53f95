package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.RPA.MaxSteps != 50 {
		t.Errorf("rpa.max_steps = %d, want 50", cfg.RPA.MaxSteps)
	}
	if cfg.RPA.SettleInterval != 500*time.Millisecond {
		t.Errorf("rpa.settle_interval = %s, want 500ms", cfg.RPA.SettleInterval)
	}
	if !cfg.RPA.DegradeOnMalformed {
		t.Error("rpa.degrade_on_malformed should default to true")
	}
	if cfg.MCP.Command != "mcporter" {
		t.Errorf("mcp.command = %q, want mcporter", cfg.MCP.Command)
	}
	if cfg.Engine.BatchLimit != 4 {
		t.Errorf("engine.batch_limit = %d, want 4", cfg.Engine.BatchLimit)
	}
	if cfg.Browser.PoolSize != 2 {
		t.Errorf("browser.pool_size = %d, want 2", cfg.Browser.PoolSize)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsagent.yaml")
	data := `
llm:
  backend: ollama
rpa:
  max_steps: 10
connectors:
  - name: mes
    base_url: http://mes.local/api
    endpoints:
      status: /status
      work_order.release: /orders/release
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.LLM.Backend != "ollama" {
		t.Errorf("llm.backend = %q", cfg.LLM.Backend)
	}
	if cfg.RPA.MaxSteps != 10 {
		t.Errorf("rpa.max_steps = %d, want 10", cfg.RPA.MaxSteps)
	}
	// Untouched keys keep their defaults.
	if cfg.MCP.Command != "mcporter" {
		t.Errorf("mcp.command = %q, want default", cfg.MCP.Command)
	}
	if len(cfg.Connectors) != 1 || cfg.Connectors[0].Name != "mes" {
		t.Fatalf("connectors = %+v", cfg.Connectors)
	}
	if cfg.Connectors[0].Endpoints["work_order.release"] != "/orders/release" {
		t.Errorf("endpoints = %+v", cfg.Connectors[0].Endpoints)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OPSAGENT_RPA_MAX_STEPS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPA.MaxSteps != 7 {
		t.Errorf("rpa.max_steps = %d, want env override 7", cfg.RPA.MaxSteps)
	}
}
