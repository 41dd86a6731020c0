package config

import "os"

// Overrides holds the CLI-flag-sourced values that take precedence over
// both the config file and environment variables; env vars sit between
// the two.
type Overrides struct {
	Mode   string
	Config string
	Host   string
}

// ResolveMode applies the precedence for --mode/MULTISHIVA_MODE/
// config-file mode: CLI highest, then env, then whatever Load already put
// in cfg.Mode.
func (c *Config) ResolveMode(flagMode string) {
	if flagMode != "" {
		c.Mode = Mode(flagMode)
		return
	}
	if env := os.Getenv("MULTISHIVA_MODE"); env != "" {
		c.Mode = Mode(env)
	}
}

// ResolveHostAddress applies the same precedence for --host/
// MULTISHIVA_HOST/host_address.
func (c *Config) ResolveHostAddress(flagHost string) {
	if flagHost != "" {
		c.HostAddress = flagHost
		return
	}
	if env := os.Getenv("MULTISHIVA_HOST"); env != "" {
		c.HostAddress = env
	}
}

// ResolveConfigPath applies the precedence for locating the config
// document itself: --config, then MULTISHIVA_CONFIG, then a caller
// supplied fallback.
func ResolveConfigPath(flagConfig, fallback string) string {
	if flagConfig != "" {
		return flagConfig
	}
	if env := os.Getenv("MULTISHIVA_CONFIG"); env != "" {
		return env
	}
	return fallback
}
