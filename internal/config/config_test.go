package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `{"web": {"port": 9090}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected overridden port 9090, got %d", cfg.Web.Port)
	}
	if cfg.General.LogLevel != "info" {
		t.Errorf("unset fields keep defaults, got logLevel %q", cfg.General.LogLevel)
	}
	if cfg.Exchange.TimeoutSeconds != 20 {
		t.Errorf("expected default timeout 20, got %d", cfg.Exchange.TimeoutSeconds)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `{"general": {"logLevel": "loud"}}`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "logLevel") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("HUB_TEST_HOST", "10.0.0.5")
	os.Unsetenv("HUB_TEST_MISSING")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "${HUB_TEST_HOST}", "10.0.0.5"},
		{"set variable ignores default", "${HUB_TEST_HOST:-fallback}", "10.0.0.5"},
		{"unset with default", "${HUB_TEST_MISSING:-fallback}", "fallback"},
		{"unset without default stays literal", "${HUB_TEST_MISSING}", "${HUB_TEST_MISSING}"},
		{"embedded", "host=${HUB_TEST_HOST}:8080", "host=10.0.0.5:8080"},
		{"no variables", "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnvVars(tt.input); got != tt.want {
				t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.General.LogLevel = "verbose" }, "logLevel"},
		{"empty db path", func(c *Config) { c.General.DBPath = "" }, "dbPath"},
		{"port out of range", func(c *Config) { c.Web.Port = 70000 }, "port"},
		{"auth missing credentials", func(c *Config) { c.Web.Auth.Enabled = true }, "auth"},
		{"zero timeout", func(c *Config) { c.Exchange.TimeoutSeconds = 0 }, "timeoutSeconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q: %v", tt.want, err)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := Defaults()
	cfg.Web.Port = 9191
	cfg.General.DBPath = "/tmp/hub.db"

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Web.Port != 9191 || loaded.General.DBPath != "/tmp/hub.db" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	cfg.Web.Port = 8088

	got, err := GetByPath(cfg, "web.port")
	if err != nil {
		t.Fatal(err)
	}
	// JSON round trip yields float64 for numbers.
	if got.(float64) != 8088 {
		t.Errorf("expected 8088, got %v", got)
	}

	if _, err := GetByPath(cfg, "web.nope"); err == nil {
		t.Error("expected error for unknown path")
	}
}

func TestSetByPath(t *testing.T) {
	cfg := Defaults()

	if err := SetByPath(cfg, "web.port", "9999"); err != nil {
		t.Fatal(err)
	}
	if cfg.Web.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Web.Port)
	}

	if err := SetByPath(cfg, "web.auth.enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if !cfg.Web.Auth.Enabled {
		t.Error("expected auth.enabled to be true")
	}

	if err := SetByPath(cfg, "general.logLevel", "debug"); err != nil {
		t.Fatal(err)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("expected debug, got %q", cfg.General.LogLevel)
	}
}

func TestSanitizeMasksPasswordHash(t *testing.T) {
	cfg := Defaults()
	cfg.Web.Auth.PasswordHash = "deadbeef"

	clean := Sanitize(cfg)
	if clean.Web.Auth.PasswordHash != "***" {
		t.Errorf("expected masked hash, got %q", clean.Web.Auth.PasswordHash)
	}
	if cfg.Web.Auth.PasswordHash != "deadbeef" {
		t.Error("original config must not be mutated")
	}
}

func TestListPaths(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, want := range []string{"general.logLevel", "web.port", "exchange.timeoutSeconds"} {
		if _, ok := paths[want]; !ok {
			t.Errorf("missing path %q", want)
		}
	}
}
