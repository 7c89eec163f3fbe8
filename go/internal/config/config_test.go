package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "battle.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(engine.DefaultConfig(), cfg.EngineConfig()); diff != "" {
		t.Errorf("engine config differs from defaults (-want +got):\n%s", diff)
	}
	if cfg.Questions.Source != SourceFile || cfg.Server.Port != "8080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
log:
  level: debug
engine:
  total_rounds: 3
  tick_interval: 50ms
  opponent:
    avatar: K
    accuracy: 0.8
    speed_ms_range: [400, 600]
questions:
  source: http
  url: https://example.com/qb.json
  timeout: 2s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	ec := cfg.EngineConfig()
	if ec.TotalRounds != 3 || ec.TickInterval != 50*time.Millisecond {
		t.Errorf("engine = %+v", ec)
	}
	if ec.RoundMaxTime != engine.DefaultConfig().RoundMaxTime {
		t.Errorf("round_max_time = %d, want default", ec.RoundMaxTime)
	}
	want := engine.OpponentProfile{Avatar: "K", Accuracy: 0.8, SpeedMsRange: [2]int{400, 600}}
	if ec.Opponent != want {
		t.Errorf("opponent = %+v, want %+v", ec.Opponent, want)
	}
	if cfg.Questions.Timeout != 2*time.Second || cfg.Server.Port != "9090" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.LogLevel() != zerolog.DebugLevel {
		t.Errorf("log level = %s", cfg.LogLevel())
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9090\"\n")
	t.Setenv("PORT", "7000")
	t.Setenv("TOTAL_ROUNDS", "7")
	t.Setenv("HISTORY_ENABLED", "true")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("MAX_BATTLES", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "7000" || cfg.Engine.TotalRounds != 7 || !cfg.History.Enabled {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins); diff != "" {
		t.Errorf("origins (-want +got):\n%s", diff)
	}
	if cfg.Server.MaxBattles != 100 {
		t.Errorf("max battles = %d, want default for unparsable value", cfg.Server.MaxBattles)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "zero rounds", body: "engine:\n  total_rounds: 0\n", want: "total_rounds"},
		{name: "inverted speed", body: "engine:\n  opponent:\n    speed_ms_range: [900, 100]\n", want: "speed_ms_range"},
		{name: "unknown source", body: "questions:\n  source: ftp\n", want: "questions.source"},
		{name: "http without url", body: "questions:\n  source: http\n", want: "questions.url"},
		{name: "bad level", body: "log:\n  level: loud\n", want: "log.level"},
		{name: "bad yaml", body: "engine: [", want: "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
