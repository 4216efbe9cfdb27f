package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("SUPERVISOR_RCON_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RCON.Host != "127.0.0.1" {
		t.Fatalf("expected default RCON host, got %q", cfg.RCON.Host)
	}
	if cfg.RCON.Port != 21114 {
		t.Fatalf("expected default RCON port 21114, got %d", cfg.RCON.Port)
	}
	if cfg.RCON.Password != "secret" {
		t.Fatalf("expected the env-provided password, got %q", cfg.RCON.Password)
	}
	if cfg.LogReader.Mode != "local" {
		t.Fatalf("expected default log reader mode local, got %q", cfg.LogReader.Mode)
	}
	if cfg.LogReader.QueueMaxSize != 10000 {
		t.Fatalf("expected default queue max size 10000, got %d", cfg.LogReader.QueueMaxSize)
	}
	if cfg.SettlingDelay != 2*time.Second {
		t.Fatalf("expected default settling delay 2s, got %s", cfg.SettlingDelay)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Log.Level)
	}
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("SUPERVISOR_RCON_PASSWORD", "secret")
	t.Setenv("SUPERVISOR_RCON_HOST", "10.0.0.5")
	t.Setenv("SUPERVISOR_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RCON.Host != "10.0.0.5" {
		t.Fatalf("expected env-overridden RCON host, got %q", cfg.RCON.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected env-overridden log level, got %q", cfg.Log.Level)
	}
}

func TestUpdateIntervalsParsesDurations(t *testing.T) {
	cfg := Config{UpdateIntervalsRaw: map[string]string{"players": "15s", "bad": "not-a-duration"}}
	intervals, errsOut := cfg.UpdateIntervals()
	if len(errsOut) != 1 {
		t.Fatalf("expected exactly one parse error, got %v", errsOut)
	}
	if intervals["players"] != 15*time.Second {
		t.Fatalf("expected players interval 15s, got %s", intervals["players"])
	}
	if _, ok := intervals["bad"]; ok {
		t.Fatal("expected the unparseable entry to be omitted")
	}
}

func TestUpdateIntervalsEmptyIsNil(t *testing.T) {
	cfg := Config{}
	intervals, errsOut := cfg.UpdateIntervals()
	if intervals != nil || errsOut != nil {
		t.Fatalf("expected nil, nil for no overrides, got %v %v", intervals, errsOut)
	}
}
