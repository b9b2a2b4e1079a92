package configs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable the loader reads so ambient shell state
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"ENVIRONMENT", "CHAT_HOST", "CHAT_PORT", "STATUS_ADDR",
		"ADMIN_PASSWORD", "ALLOWED_ORIGINS", "AUTH_TIMEOUT",
		"MAX_LINE_BYTES", "MESSAGE_RATE", "MESSAGE_BURST", "DATA_DIR",
	} {
		t.Setenv(key, "")
	}
	os.Unsetenv("STATUS_ADDR")
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.Addr() != "0.0.0.0:55000" {
		t.Errorf("Addr = %q, want 0.0.0.0:55000", cfg.Addr())
	}
	if cfg.AuthTimeout.Std() != 30*time.Second {
		t.Errorf("AuthTimeout = %s, want 30s", cfg.AuthTimeout)
	}
	if cfg.MaxLineBytes != 64*1024 {
		t.Errorf("MaxLineBytes = %d, want %d", cfg.MaxLineBytes, 64*1024)
	}
	if cfg.AdminPassword != DefaultAdminPassword {
		t.Errorf("AdminPassword = %q, want the development default", cfg.AdminPassword)
	}
}

func TestLoadConfigYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := strings.Join([]string{
		"host: 127.0.0.1",
		"port: 6000",
		"auth_timeout: 5s",
		"max_line_bytes: 2048",
		"allowed_origins:",
		"  - https://chat.example.com",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:6000" {
		t.Errorf("Addr = %q, want 127.0.0.1:6000", cfg.Addr())
	}
	if cfg.AuthTimeout.Std() != 5*time.Second {
		t.Errorf("AuthTimeout = %s, want 5s", cfg.AuthTimeout)
	}
	if cfg.MaxLineBytes != 2048 {
		t.Errorf("MaxLineBytes = %d, want 2048", cfg.MaxLineBytes)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://chat.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}

	// Unset keys keep their defaults.
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 6000\nhost: 10.0.0.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CHAT_PORT", "7000")
	t.Setenv("AUTH_TIMEOUT", "90s")
	t.Setenv("MESSAGE_RATE", "2.5")
	t.Setenv("MESSAGE_BURST", "42")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com , https://b.example.com ")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != 7000 {
		t.Errorf("Port = %d, want the env override 7000", cfg.Port)
	}
	if cfg.Host != "10.0.0.1" {
		t.Errorf("Host = %q, want the file value 10.0.0.1", cfg.Host)
	}
	if cfg.AuthTimeout.Std() != 90*time.Second {
		t.Errorf("AuthTimeout = %s, want 90s", cfg.AuthTimeout)
	}
	if cfg.MessageRate != 2.5 {
		t.Errorf("MessageRate = %v, want 2.5", cfg.MessageRate)
	}
	if cfg.MessageBurst != 42 {
		t.Errorf("MessageBurst = %d, want 42", cfg.MessageBurst)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "CHAT_PORT", "99999"},
		{"port not a number", "CHAT_PORT", "abc"},
		{"bad auth timeout", "AUTH_TIMEOUT", "soon"},
		{"negative auth timeout", "AUTH_TIMEOUT", "-5s"},
		{"line ceiling too small", "MAX_LINE_BYTES", "100"},
		{"bad message rate", "MESSAGE_RATE", "fast"},
		{"non-positive burst", "MESSAGE_BURST", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(""); err == nil {
				t.Fatalf("LoadConfig accepted %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadConfigProductionRequiresAdminPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("production config accepted without an admin password")
	}

	t.Setenv("ADMIN_PASSWORD", "strong-secret")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AdminPassword != "strong-secret" {
		t.Errorf("AdminPassword = %q", cfg.AdminPassword)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing config file accepted")
	}
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	if d.String() != "1m30s" {
		t.Errorf("String = %q, want 1m30s", d.String())
	}
	if d.Std() != 90*time.Second {
		t.Errorf("Std = %s", d.Std())
	}
}
