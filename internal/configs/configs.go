/*
Package configs is responsible for loading and parsing the application's
configuration settings.

Values come from three layers in increasing precedence: built-in defaults, an
optional YAML configuration file, and operating system environment variables.
Command-line flags are applied on top by the caller.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAdminPassword is the development-only admin secret, matching the
// reference deployment. Production requires ADMIN_PASSWORD to be set.
const DefaultAdminPassword = "admin123"

// Duration wraps time.Duration so YAML files can use forms like "30s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}

	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats the duration in Go's standard notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// AppConfig contains all configuration parameters required to run the server.
type AppConfig struct {
	// General Server Settings
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`

	// StatusAddr is the listen address for the HTTP status surface.
	// An empty value disables it.
	StatusAddr string `yaml:"status_addr"`

	// Security Settings
	AdminPassword  string   `yaml:"admin_password"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Protocol Settings
	AuthTimeout  Duration `yaml:"auth_timeout"`
	MaxLineBytes int      `yaml:"max_line_bytes"`
	MessageRate  float64  `yaml:"message_rate"`
	MessageBurst int      `yaml:"message_burst"`

	// Persistence Settings
	DataDir string `yaml:"data_dir"`
}

// Addr returns the TCP listen address in host:port form.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// defaults returns an AppConfig populated with built-in default values.
func defaults() *AppConfig {
	return &AppConfig{
		Environment:  "development",
		Host:         "0.0.0.0",
		Port:         55000,
		StatusAddr:   ":8080",
		AuthTimeout:  Duration(30 * time.Second),
		MaxLineBytes: 64 * 1024,
		MessageRate:  5,
		MessageBurst: 10,
		DataDir:      "./data",
	}
}

// LoadConfig builds the application configuration. If configFile is not
// empty, the YAML file is layered over the defaults before environment
// variables are applied. It validates the result and returns any error
// encountered.
func LoadConfig(configFile string) (*AppConfig, error) {
	cfg := defaults()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides cfg fields from environment variables.
func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	if v := os.Getenv("CHAT_HOST"); v != "" {
		cfg.Host = v
	}

	if v := os.Getenv("CHAT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHAT_PORT environment variable: %w", err)
		}
		cfg.Port = port
	}

	if v, ok := os.LookupEnv("STATUS_ADDR"); ok {
		cfg.StatusAddr = v
	}

	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	if v := os.Getenv("AUTH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AUTH_TIMEOUT environment variable: %w", err)
		}
		cfg.AuthTimeout = Duration(d)
	}

	if v := os.Getenv("MAX_LINE_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_LINE_BYTES environment variable: %w", err)
		}
		cfg.MaxLineBytes = n
	}

	if v := os.Getenv("MESSAGE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MESSAGE_RATE environment variable: %w", err)
		}
		cfg.MessageRate = f
	}

	if v := os.Getenv("MESSAGE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MESSAGE_BURST environment variable: %w", err)
		}
		cfg.MessageBurst = n
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	return nil
}

// validate checks cross-field constraints and fills environment-dependent
// defaults, mirroring the policy that development gets insecure defaults and
// production must be configured explicitly.
func validate(cfg *AppConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port number %d is outside the valid range (1-65535)", cfg.Port)
	}

	if cfg.AuthTimeout <= 0 {
		return fmt.Errorf("auth timeout must be positive, got %s", cfg.AuthTimeout)
	}

	if cfg.MaxLineBytes < 1024 {
		return fmt.Errorf("max line bytes %d is too small to carry protocol messages", cfg.MaxLineBytes)
	}

	if cfg.MessageRate <= 0 || cfg.MessageBurst <= 0 {
		return fmt.Errorf("message rate and burst must be positive")
	}

	if cfg.AdminPassword == "" {
		if cfg.Environment == "development" {
			cfg.AdminPassword = DefaultAdminPassword
		} else {
			return fmt.Errorf("ADMIN_PASSWORD environment variable is required in %s environment", cfg.Environment)
		}
	}

	return nil
}
