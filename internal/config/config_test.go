package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesAgentsAndDurations(t *testing.T) {
	path := writeConfig(t, `
engine:
  research_ttl: 45m
  cycle_min: 2m
agents:
  - name: ada
    model: gpt-4o
    temperature: 0.4
    max_wager: 2.5
    account: acct-ada
  - name: bix
    max_wager: "0.75"
    account: acct-bix
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.ResearchTTL != 45*time.Minute {
		t.Fatalf("research ttl = %v, want 45m", cfg.Engine.ResearchTTL)
	}
	if cfg.Engine.CycleMin != 2*time.Minute {
		t.Fatalf("cycle min = %v, want 2m", cfg.Engine.CycleMin)
	}
	if len(cfg.Agents) != 2 {
		t.Fatalf("agents = %d, want 2", len(cfg.Agents))
	}
	if !cfg.Agents[0].MaxWager.Equal(decimal.NewFromFloat(2.5)) {
		t.Fatalf("ada max wager = %s, want 2.5", cfg.Agents[0].MaxWager)
	}
	if !cfg.Agents[1].MaxWager.Equal(decimal.NewFromFloat(0.75)) {
		t.Fatalf("bix max wager = %s, want 0.75 from string", cfg.Agents[1].MaxWager)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
agents:
  - name: ada
    account: acct-ada
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Engine.ResearchTTL != 30*time.Minute {
		t.Fatalf("research ttl default = %v, want 30m", cfg.Engine.ResearchTTL)
	}
	if cfg.Market.ChatLimit != 20 {
		t.Fatalf("chat limit default = %d, want 20", cfg.Market.ChatLimit)
	}
}

func TestLoadRejectsDuplicateAgentNames(t *testing.T) {
	path := writeConfig(t, `
agents:
  - name: ada
    account: a1
  - name: ada
    account: a2
`)

	if _, err := Load(path, false); err == nil {
		t.Fatal("want error for duplicate agent names")
	}
}

func TestLoadRejectsNegativeMaxWager(t *testing.T) {
	path := writeConfig(t, `
agents:
  - name: ada
    account: a1
    max_wager: -1
`)

	if _, err := Load(path, false); err == nil {
		t.Fatal("want error for negative max wager")
	}
}
