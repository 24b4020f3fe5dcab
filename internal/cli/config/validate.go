package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/reportdsl/pkg/adapter"
)

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.ConfigDir == "" {
		return fmt.Errorf("config_dir is required")
	}
	if !slices.Contains(OutputFormats, c.Output) {
		return fmt.Errorf("invalid output format %q (want one of %s)", c.Output, strings.Join(OutputFormats, ", "))
	}
	if c.Preview != nil && c.Preview.Timeout < 0 {
		return fmt.Errorf("preview.timeout must not be negative")
	}
	if c.Server != nil && (c.Server.Port < 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Target != nil {
		if err := c.Target.Validate(); err != nil {
			return fmt.Errorf("invalid target configuration: %w", err)
		}
	}
	return nil
}

// Validate checks the target against the adapter registry.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// ApplyTargetDefaults fills type-specific defaults.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = DefaultTargetType
	}
	t.Type = strings.ToLower(t.Type)

	switch t.Type {
	case "postgres":
		if t.Port == 0 {
			t.Port = 5432
		}
		if t.Schema == "" {
			t.Schema = "public"
		}
	default:
		if t.Schema == "" {
			t.Schema = "main"
		}
	}
}
