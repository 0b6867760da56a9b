// config.go - Configuration management for the zerotrace daemon.
//
// Files ending in .yaml or .yml are read and written as YAML, everything else
// as JSON.

package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"zerotrace/internal/fault"
)

// Config is the daemon configuration.
type Config struct {
	// Network
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
	StaticDir  string `json:"static_dir" yaml:"static_dir"`

	// Logging
	LogLevel     string `json:"log_level" yaml:"log_level"`
	LogFile      string `json:"log_file" yaml:"log_file"`
	LogConsole   bool   `json:"log_console" yaml:"log_console"`
	EnableAudit  bool   `json:"enable_audit" yaml:"enable_audit"`
	AuditLogPath string `json:"audit_log_path" yaml:"audit_log_path"`

	// Proofs
	ProofBackend string `json:"proof_backend" yaml:"proof_backend"`
	KeyDir       string `json:"key_dir" yaml:"key_dir"`

	// Ledger export on shutdown; empty disables it
	LedgerPath string `json:"ledger_path" yaml:"ledger_path"`

	// Limits
	RateLimitPerSecond     float64 `json:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	RateLimitBurst         int     `json:"rate_limit_burst" yaml:"rate_limit_burst"`
	ShutdownTimeoutSeconds int     `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:             "127.0.0.1:8080",
		LogLevel:               "info",
		LogConsole:             true,
		EnableAudit:            false,
		AuditLogPath:           "audit.log",
		ProofBackend:           "digest",
		KeyDir:                 "keys",
		LedgerPath:             "",
		RateLimitPerSecond:     5,
		RateLimitBurst:         10,
		ShutdownTimeoutSeconds: 10,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the configuration at path. A missing file is created with the
// defaults. Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", fault.ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%w: listen_addr: %v", fault.ErrInvalidConfig, err)
	}
	switch c.ProofBackend {
	case "digest", "groth16":
	default:
		return fmt.Errorf("%w: proof_backend %q", fault.ErrInvalidConfig, c.ProofBackend)
	}
	if c.EnableAudit && c.AuditLogPath == "" {
		return fmt.Errorf("%w: audit_log_path is required when enable_audit is set", fault.ErrInvalidConfig)
	}
	if c.RateLimitPerSecond < 0 {
		return fmt.Errorf("%w: rate_limit_per_second must not be negative", fault.ErrInvalidConfig)
	}
	if c.RateLimitPerSecond > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("%w: rate_limit_burst must be positive", fault.ErrInvalidConfig)
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: shutdown_timeout_seconds must be positive", fault.ErrInvalidConfig)
	}
	return nil
}

// AuditFile returns the audit log path, or "" when auditing is off.
func (c *Config) AuditFile() string {
	if !c.EnableAudit {
		return ""
	}
	return c.AuditLogPath
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
