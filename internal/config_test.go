package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/geoplan/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
}

func TestEditorConfig_Bounds(t *testing.T) {
	tests := map[string]func(*EditorConfig){
		"zero grid":        func(c *EditorConfig) { c.GridSize = 0 },
		"history too deep": func(c *EditorConfig) { c.HistoryLimit = 5000 },
		"tiny timeout":     func(c *EditorConfig) { c.SaveTimeout = time.Millisecond },
		"no marker size":   func(c *EditorConfig) { c.MarkerSize = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(&cfg.Editor)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEditorConfig_Snap(t *testing.T) {
	cfg := NewDefaultConfig().Editor
	cfg.SnapGrid = true
	s := cfg.Snap()
	if !s.Grid || s.GridSize != 20 || !s.Objects || s.Threshold != 8 {
		t.Errorf("snap = %+v", s)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("GEOPLAN_TEST_TOKEN", "s3cret")
	data := `
app:
  log_level: debug
  http:
    port: 9090
plans:
  path: /srv/plans
sqlite:
  path: /srv/geoplan.db
auth:
  mode: token
  token: ${GEOPLAN_TEST_TOKEN}
editor:
  grid_size: 25
  snap_threshold: 6
  history_limit: 50
  save_timeout: 3s
  marker_size: 30
  multi_instance: true
sse:
  plan_throttle: 500ms
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("token = %q", cfg.Auth.Token)
	}
	if cfg.Editor.SaveTimeout != 3*time.Second || !cfg.Editor.MultiInstance || cfg.Editor.GridSize != 25 {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.SSE.PlanThrottle != 500*time.Millisecond {
		t.Errorf("sse = %+v", cfg.SSE)
	}
}
