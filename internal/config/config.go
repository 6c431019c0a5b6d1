// internal/config/config.go
//
// This package handles configuration and the .warroom directory structure.
// Running warroom in a directory creates .warroom/ there, holding the
// project config file and the log directory.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// WarroomDir is the name of the directory we create in each project
	WarroomDir = ".warroom"

	// EnvPrefix namespaces environment overrides (WARROOM_SERVER_PORT -> server.port).
	EnvPrefix = "WARROOM_"

	maxConfigFileSize = 1 << 20
)

// Variants of the script.
const (
	VariantFull    = "full"
	VariantClassic = "classic"
)

const defaultProjectConfigYAML = `# warroom project configuration

# full: stakeholder selection and a second review round.
# classic: straight from the intro to the first question, single review.
variant: full

timing:
  # Playback speed multiplier. 2.0 halves every scripted delay.
  speed: 1.0

synthesis:
  # Remote POST /synthesize endpoint. When set, the session calls it instead
  # of a model backend directly.
  endpoint: ""
  # anthropic or openai. The api_key falls back to ANTHROPIC_API_KEY or
  # OPENAI_API_KEY for the matching provider.
  provider: anthropic
  model: ""
  base_url: ""
  api_key: ""
  timeout: 20s
  max_tokens: 1024

server:
  host: 127.0.0.1
  port: 8787
  max_body_bytes: 1048576
  read_timeout: 15s
  write_timeout: 30s
  idle_timeout: 60s

logging:
  # debug, info, warn or error
  level: info
  # json or console
  format: json
  # Relative to .warroom/logs. Empty logs to stderr.
  file: warroom.log
`

// TimingConfig controls script playback.
type TimingConfig struct {
	Speed float64 `koanf:"speed"`
}

// SynthesisConfig selects the decision synthesis backend.
type SynthesisConfig struct {
	Endpoint  string        `koanf:"endpoint"`
	Provider  string        `koanf:"provider"`
	Model     string        `koanf:"model"`
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxTokens int           `koanf:"max_tokens"`
}

// ServerConfig configures the synthesis HTTP API.
type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	MaxBodyBytes int64         `koanf:"max_body_bytes"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// LoggingConfig configures zap output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// Config holds the runtime configuration for warroom.
type Config struct {
	// ProjectDir is the directory where the user ran `warroom` from
	ProjectDir string `koanf:"-"`

	// WarroomProjectDir is ProjectDir/.warroom
	WarroomProjectDir string `koanf:"-"`

	Variant   string          `koanf:"variant"`
	Timing    TimingConfig    `koanf:"timing"`
	Synthesis SynthesisConfig `koanf:"synthesis"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// InitDir creates the .warroom directory structure in the given project directory.
//
// Structure created:
// .warroom/
// ├── config.yaml
// └── logs/
func InitDir(projectDir string) error {
	dir := filepath.Join(projectDir, WarroomDir)
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}
	return ensureProjectConfig(filepath.Join(dir, "config.yaml"))
}

// NewConfig loads built-in defaults, then .warroom/config.yaml when present,
// then WARROOM_* environment variables.
func NewConfig(projectDir string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(defaultProjectConfigYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	cfg := &Config{
		ProjectDir:        projectDir,
		WarroomProjectDir: filepath.Join(projectDir, WarroomDir),
	}

	content, err := readProjectConfig(cfg.ProjectConfigPath())
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", cfg.ProjectConfigPath(), err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.applyDefaults()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration without touching disk or env.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.normalize()
	return cfg
}

// envKey maps WARROOM_SECTION_FIELD_NAME to section.field_name. Only the
// first underscore after the prefix separates the section.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.WarroomProjectDir, "logs")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.WarroomProjectDir, "config.yaml")
}

// LogFilePath returns the log destination, or "" for stderr.
func (c *Config) LogFilePath() string {
	file := strings.TrimSpace(c.Logging.File)
	if file == "" || c.WarroomProjectDir == "" {
		return ""
	}
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(c.LogsDir(), file)
}

// Address returns the API bind address in host:port form.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func readProjectConfig(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config: %s exceeds %d bytes", path, maxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return data, nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Variant == "" {
		c.Variant = VariantFull
	}
	if c.Timing.Speed == 0 {
		c.Timing.Speed = 1
	}
	if c.Synthesis.Provider == "" {
		c.Synthesis.Provider = "anthropic"
	}
	if c.Synthesis.Timeout == 0 {
		c.Synthesis.Timeout = 20 * time.Second
	}
	if c.Synthesis.MaxTokens == 0 {
		c.Synthesis.MaxTokens = 1024
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8787
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) normalize() {
	c.Variant = strings.ToLower(strings.TrimSpace(c.Variant))
	c.Synthesis.Provider = strings.ToLower(strings.TrimSpace(c.Synthesis.Provider))
	c.Synthesis.Endpoint = strings.TrimRight(strings.TrimSpace(c.Synthesis.Endpoint), "/")
	c.Synthesis.Model = strings.TrimSpace(c.Synthesis.Model)
	c.Synthesis.BaseURL = strings.TrimSpace(c.Synthesis.BaseURL)
	c.Synthesis.APIKey = strings.TrimSpace(c.Synthesis.APIKey)
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

func (c *Config) validate() error {
	switch c.Variant {
	case VariantFull, VariantClassic:
	default:
		return fmt.Errorf("variant must be %q or %q", VariantFull, VariantClassic)
	}
	if c.Timing.Speed <= 0 {
		return fmt.Errorf("timing.speed must be positive")
	}
	switch c.Synthesis.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("synthesis.provider must be 'anthropic' or 'openai'")
	}
	if c.Synthesis.Timeout < 0 {
		return fmt.Errorf("synthesis.timeout must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}
	return nil
}
