package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REPORTDSL_"

// configNames are the config file names searched for, in order.
var configNames = []string{"reportdsl.yaml", "reportdsl.yml"}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// sections are the nested config blocks. Env vars and flags address their
// keys as section_key.
var sections = []string{"preview", "target", "server"}

// flagKeys maps flag names whose config key differs from the snake_case name.
// An empty key means the flag is not a config value.
var flagKeys = map[string]string{
	"state":  "state_path",
	"config": "",
	"target": "",
}

type (
	loggerKey struct{}
	configKey struct{}
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if p := configExistsIn(dir); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || path == ":memory:" || path == NoHistory {
		return path
	}
	return filepath.Join(baseDir, path)
}

// defaults returns the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"config_dir":          DefaultConfigDir,
		"state_path":          DefaultStateFile,
		"verbose":             false,
		"output":              DefaultOutput,
		"preview.limit":       DefaultPreviewLimit,
		"preview.timeout":     DefaultTimeout,
		"preview.backend_url": "",
		"target.type":         DefaultTargetType,
		"server.port":         DefaultServerPort,
		"server.watch":        true,
	}
}

// sectionKey turns preview_limit into preview.limit.
func sectionKey(key string) string {
	for _, s := range sections {
		if rest, ok := strings.CutPrefix(key, s+"_"); ok {
			return s + "." + rest
		}
	}
	return key
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Without an explicit cfgFile the working directory and its parents are
// searched; the directory holding the file becomes the project root.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadConfigWithTarget(cfgFile, "", flags)
}

// LoadConfigWithTarget loads configuration and merges the named entry of
// targets over the base target.
func LoadConfigWithTarget(cfgFile, targetName string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	projectRoot := cwd
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment: REPORTDSL_PREVIEW_LIMIT -> preview.limit
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return sectionKey(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set. Flag paths are relative to the
	// working directory, not the project root.
	flagPaths := map[string]string{}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[key]; ok {
				if mapped == "" {
					return "", nil
				}
				key = mapped
			}
			key = sectionKey(key)
			if key == "config_dir" || key == "state_path" {
				flagPaths[key] = f.Value.String()
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot
	cfg.File = cfgFile

	cfg.ConfigDir = resolveFlagOrRoot(cfg.ConfigDir, flagPaths["config_dir"], projectRoot)
	cfg.StatePath = resolveFlagOrRoot(cfg.StatePath, flagPaths["state_path"], projectRoot)

	if targetName != "" {
		named, ok := cfg.Targets[targetName]
		if !ok {
			return nil, fmt.Errorf("target %q is not defined under targets", targetName)
		}
		cfg.Target = MergeTargetConfig(cfg.Target, named)
	}
	if cfg.Target == nil {
		cfg.Target = &TargetConfig{}
	}
	ApplyTargetDefaults(cfg.Target)
	expandTargetEnvVars(cfg.Target)
	if cfg.Target.Type != "postgres" {
		cfg.Target.Database = resolvePathRelativeTo(cfg.Target.Database, projectRoot)
	}
	if cfg.Preview == nil {
		cfg.Preview = &PreviewConfig{Limit: DefaultPreviewLimit, Timeout: DefaultTimeout}
	}
	if cfg.Server == nil {
		cfg.Server = &ServerConfig{Port: DefaultServerPort, Watch: true}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveFlagOrRoot(value, flagValue, root string) string {
	if flagValue != "" {
		if value == NoHistory || value == ":memory:" {
			return value
		}
		if abs, err := filepath.Abs(flagValue); err == nil {
			return abs
		}
		return flagValue
	}
	return resolvePathRelativeTo(value, root)
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unknown variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	for k, v := range t.Options {
		t.Options[k] = expandEnvVars(v)
	}
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	merged.Params = make(map[string]any, len(base.Params)+len(override.Params))
	for k, v := range base.Options {
		merged.Options[k] = v
	}
	for k, v := range base.Params {
		merged.Params[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	return &merged
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, or nil.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return nil
}
