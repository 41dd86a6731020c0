// Package config loads and validates the YAML configuration document.
// Grounded on the teacher's own config package conventions
// (Load(path) returning a populated struct, a Summary/Print method for
// startup diagnostics).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/multishiva/multishiva/internal/event"
)

// Mode is the role a process runs as.
type Mode string

const (
	ModeHost  Mode = "host"
	ModeAgent Mode = "agent"
)

const defaultPort = 53421

// Behavior carries the friction/threshold/reconnect tuning knobs.
type Behavior struct {
	EdgeThresholdPx  int32         `yaml:"edge_threshold_px"`
	FrictionMS       time.Duration `yaml:"-"`
	FrictionMSRaw    uint32        `yaml:"friction_ms"`
	ReconnectDelayMS uint32        `yaml:"reconnect_delay_ms"`
}

// Hotkeys carries the two configurable hotkey strings, in "Ctrl+Alt+H"-style notation.
type Hotkeys struct {
	FocusReturn string `yaml:"focus_return"`
	KillSwitch  string `yaml:"kill_switch"`
}

// TLS carries the shared-secret authentication material. Named "tls"
// even though the transport itself isn't TLS-wrapped — the PSK is used
// for the HMAC handshake proof and fingerprint derivation (internal/wire,
// internal/fingerprint).
type TLS struct {
	PSK string `yaml:"psk"`
}

// Edges is the self-declared neighbor-by-direction mapping.
type Edges struct {
	Left   string `yaml:"left"`
	Right  string `yaml:"right"`
	Top    string `yaml:"top"`
	Bottom string `yaml:"bottom"`
}

// Config is the fully parsed and defaulted configuration document.
type Config struct {
	SelfName    string   `yaml:"self_name"`
	Mode        Mode     `yaml:"mode"`
	Port        uint16   `yaml:"port"`
	HostAddress string   `yaml:"host_address"`
	TLS         TLS      `yaml:"tls"`
	Edges       Edges    `yaml:"edges"`
	Hotkeys     Hotkeys  `yaml:"hotkeys"`
	Behavior    Behavior `yaml:"behavior"`
}

// Error is a malformed-or-missing configuration, fatal at startup.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads, parses, defaults, and validates the document at path.
func Load(path string) (*Config, error) {
	cfg, err := LoadLenient(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadLenient reads, parses, and defaults the document at path but does
// not validate it, so a caller can apply CLI/env overrides (ResolveMode,
// ResolveHostAddress) — which may supply a field the file itself omits —
// before calling Validate. Load is LoadLenient+Validate for callers that
// have no overrides to apply.
func LoadLenient(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Field: "path", Err: err}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &Error{Field: "yaml", Err: err}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the document is structurally complete, returning a
// fatal *Error at startup if it isn't.
func (c *Config) Validate() error {
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Behavior.EdgeThresholdPx == 0 {
		c.Behavior.EdgeThresholdPx = 10
	}
	if c.Behavior.FrictionMSRaw == 0 {
		c.Behavior.FrictionMSRaw = 100
	}
	if c.Behavior.ReconnectDelayMS == 0 {
		c.Behavior.ReconnectDelayMS = 5000
	}
	c.Behavior.FrictionMS = time.Duration(c.Behavior.FrictionMSRaw) * time.Millisecond
}

func (c *Config) validate() error {
	if c.SelfName == "" {
		return &Error{Field: "self_name", Err: fmt.Errorf("must not be empty")}
	}
	switch c.Mode {
	case ModeHost, ModeAgent:
	case "":
		return &Error{Field: "mode", Err: fmt.Errorf("must be %q or %q", ModeHost, ModeAgent)}
	default:
		return &Error{Field: "mode", Err: fmt.Errorf("unknown mode %q", c.Mode)}
	}
	if c.TLS.PSK == "" {
		return &Error{Field: "tls.psk", Err: fmt.Errorf("shared secret must not be empty")}
	}
	return nil
}

// EdgeMap converts Edges into the Declaration shape internal/topology
// expects, dropping unset directions.
func (e Edges) EdgeMap() map[event.Edge]string {
	m := make(map[event.Edge]string, 4)
	if e.Left != "" {
		m[event.EdgeLeft] = e.Left
	}
	if e.Right != "" {
		m[event.EdgeRight] = e.Right
	}
	if e.Top != "" {
		m[event.EdgeTop] = e.Top
	}
	if e.Bottom != "" {
		m[event.EdgeBottom] = e.Bottom
	}
	return m
}

// Summary renders a short, log-friendly description of the loaded
// configuration (teacher convention: a Summary/Print method rather than
// relying on %+v for startup diagnostics).
func (c *Config) Summary() string {
	return fmt.Sprintf("self=%s mode=%s port=%d host_address=%q edges=%v",
		c.SelfName, c.Mode, c.Port, c.HostAddress, c.Edges.EdgeMap())
}
