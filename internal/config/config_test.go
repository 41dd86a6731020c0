package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/multishiva/multishiva/internal/event"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "self_name: h\nmode: host\ntls:\n  psk: s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %d, got %d", defaultPort, cfg.Port)
	}
	if cfg.Behavior.EdgeThresholdPx != 10 {
		t.Fatalf("expected default threshold 10, got %d", cfg.Behavior.EdgeThresholdPx)
	}
	if cfg.Behavior.ReconnectDelayMS != 5000 {
		t.Fatalf("expected default reconnect delay 5000, got %d", cfg.Behavior.ReconnectDelayMS)
	}
}

func TestLoadRejectsMissingSelfName(t *testing.T) {
	path := writeConfig(t, "mode: host\ntls:\n  psk: s\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing self_name")
	}
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := writeConfig(t, "self_name: h\nmode: router\ntls:\n  psk: s\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid mode")
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	path := writeConfig(t, "self_name: h\nmode: host\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing psk")
	}
}

func TestEdgeMapDropsUnsetDirections(t *testing.T) {
	e := Edges{Right: "agent"}
	m := e.EdgeMap()
	if len(m) != 1 || m[event.EdgeRight] != "agent" {
		t.Fatalf("unexpected edge map: %v", m)
	}
}

func TestResolveModePrecedence(t *testing.T) {
	t.Setenv("MULTISHIVA_MODE", "agent")
	cfg := &Config{Mode: ModeHost}
	cfg.ResolveMode("")
	if cfg.Mode != ModeAgent {
		t.Fatalf("expected env override, got %v", cfg.Mode)
	}
	cfg.ResolveMode("host")
	if cfg.Mode != ModeHost {
		t.Fatalf("expected CLI flag to win, got %v", cfg.Mode)
	}
}

// TestLoadLenientDefersValidationToCaller exercises the split that lets
// cmd/multishiva apply CLI/env overrides (ResolveMode) to a file that
// omits mode before validating it.
func TestLoadLenientDefersValidationToCaller(t *testing.T) {
	path := writeConfig(t, "self_name: h\ntls:\n  psk: s\n")

	cfg, err := LoadLenient(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Mode, "file omits mode, LoadLenient must not reject it")

	require.Error(t, cfg.Validate(), "mode still unset, Validate must fail")

	cfg.ResolveMode("host")
	require.NoError(t, cfg.Validate())
	require.Equal(t, ModeHost, cfg.Mode)
}

func TestResolveConfigPathPrecedence(t *testing.T) {
	t.Setenv("MULTISHIVA_CONFIG", "/env/path.yaml")
	if got := ResolveConfigPath("", "/fallback.yaml"); got != "/env/path.yaml" {
		t.Fatalf("expected env path, got %q", got)
	}
	if got := ResolveConfigPath("/cli/path.yaml", "/fallback.yaml"); got != "/cli/path.yaml" {
		t.Fatalf("expected CLI path to win, got %q", got)
	}
}
