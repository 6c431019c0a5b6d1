package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Variant != VariantFull {
		t.Fatalf("expected default variant %q, got %q", VariantFull, cfg.Variant)
	}
	if cfg.Timing.Speed != 1 {
		t.Fatalf("expected speed 1, got %v", cfg.Timing.Speed)
	}
	if cfg.Server.Port != 8787 {
		t.Fatalf("expected default port 8787, got %d", cfg.Server.Port)
	}
	if cfg.Synthesis.Timeout != 20*time.Second {
		t.Fatalf("expected 20s synthesis timeout, got %s", cfg.Synthesis.Timeout)
	}
	if got := cfg.LogFilePath(); got != filepath.Join(projectDir, WarroomDir, "logs", "warroom.log") {
		t.Fatalf("unexpected log path %s", got)
	}
}

func TestInitDirWritesTemplateOnce(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("init dir: %v", err)
	}
	path := filepath.Join(projectDir, WarroomDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	if !strings.Contains(string(data), "variant: full") {
		t.Fatalf("template missing variant: %s", data)
	}
	if err := os.WriteFile(path, []byte("variant: classic\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("second init: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "variant: classic\n" {
		t.Fatalf("InitDir overwrote existing config: %s", data)
	}
	if _, err := os.Stat(filepath.Join(projectDir, WarroomDir, "logs")); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
}

func TestNewConfigParsesProjectFile(t *testing.T) {
	projectDir := t.TempDir()
	dir := filepath.Join(projectDir, WarroomDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
variant: Classic
timing:
  speed: 4
synthesis:
  provider: OpenAI
  model: gpt-4o-mini
  endpoint: http://localhost:8787/
  timeout: 5s
server:
  port: 9100
logging:
  format: console
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Variant != VariantClassic {
		t.Fatalf("expected classic variant, got %q", cfg.Variant)
	}
	if cfg.Timing.Speed != 4 {
		t.Fatalf("expected speed 4, got %v", cfg.Timing.Speed)
	}
	if cfg.Synthesis.Provider != "openai" {
		t.Fatalf("expected provider normalized to openai, got %q", cfg.Synthesis.Provider)
	}
	if cfg.Synthesis.Endpoint != "http://localhost:8787" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Synthesis.Endpoint)
	}
	if cfg.Synthesis.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.Synthesis.Timeout)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected default host kept, got %q", cfg.Server.Host)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected console format, got %q", cfg.Logging.Format)
	}
}

func TestNewConfigHonorsEnv(t *testing.T) {
	t.Setenv("WARROOM_SERVER_PORT", "9001")
	t.Setenv("WARROOM_SERVER_HOST", "0.0.0.0")
	t.Setenv("WARROOM_SYNTHESIS_API_KEY", "sk-test")
	t.Setenv("WARROOM_VARIANT", "classic")
	cfg, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", cfg.Server.Host)
	}
	if cfg.Synthesis.APIKey != "sk-test" {
		t.Fatalf("expected api key from env, got %q", cfg.Synthesis.APIKey)
	}
	if cfg.Variant != VariantClassic {
		t.Fatalf("expected variant from env, got %q", cfg.Variant)
	}
}

func TestNewConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"variant":  "variant: deluxe\n",
		"speed":    "timing:\n  speed: -1\n",
		"provider": "synthesis:\n  provider: cohere\n",
		"level":    "logging:\n  level: loud\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			dir := filepath.Join(projectDir, WarroomDir)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewConfig(projectDir); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"WARROOM_SERVER_PORT":         "server.port",
		"WARROOM_SYNTHESIS_MAX_TOKENS": "synthesis.max_tokens",
		"WARROOM_VARIANT":             "variant",
	}
	for in, want := range cases {
		if got := envKey(in); got != want {
			t.Fatalf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
