package types

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CyclePolicy decides what happens when table links form a cycle.
type CyclePolicy string

const (
	// CycleDegrade creates the tables anyway and drops the foreign key
	// constraints that cannot be satisfied.
	CycleDegrade CyclePolicy = "degrade"
	// CycleReject fails the bootstrap before any table is created.
	CycleReject CyclePolicy = "reject"
)

// ParseCyclePolicy converts a config value. Empty means CycleDegrade.
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch p := CyclePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CycleDegrade, nil
	case CycleDegrade, CycleReject:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCyclePolicy, s)
	}
}

// Config is the runtime configuration loaded from config.yaml.
type Config struct {
	DBVersion string       `mapstructure:"db_version" yaml:"db_version" validate:"required"`
	DefsDir   string       `mapstructure:"defs_dir" yaml:"defs_dir"`
	Schema    SchemaConfig `mapstructure:"schema" yaml:"schema"`
	Salt      SaltConfig   `mapstructure:"salt" yaml:"salt"`
	Log       LogConfig    `mapstructure:"log" yaml:"log"`
	Server    ServerConfig `mapstructure:"server" yaml:"server"`
}

// SchemaConfig tunes the schema resolver.
type SchemaConfig struct {
	CyclePolicy string `mapstructure:"cycle_policy" yaml:"cycle_policy" validate:"omitempty,oneof=degrade reject"`
}

// SaltConfig describes how the integrity checksum is derived. The secret
// comes from Key, or from the file at KeyFile when Key is empty.
type SaltConfig struct {
	HashMethod       string `mapstructure:"hash_method" yaml:"hash_method" validate:"required"`
	Key              string `mapstructure:"key" yaml:"key,omitempty"`
	KeyFile          string `mapstructure:"key_file" yaml:"key_file,omitempty"`
	TruncationLength int    `mapstructure:"truncation_length" yaml:"truncation_length" validate:"gte=0"`
}

// LogConfig selects the zap configuration.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

var validate = validator.New()

// Validate checks struct constraints and then the values that need parsing.
// Failures wrap ErrInvalidConfig or a more specific configuration error.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if _, err := ParseCyclePolicy(c.Schema.CyclePolicy); err != nil {
		return err
	}
	return c.Salt.Validate()
}

// Validate checks the salt configuration without reading KeyFile.
func (s SaltConfig) Validate() error {
	if _, err := ParseHashMethod(s.HashMethod); err != nil {
		return err
	}
	if s.TruncationLength < 0 {
		return fmt.Errorf("%w: truncation_length must be >= 0", ErrInvalidConfig)
	}
	if s.Key == "" && s.KeyFile == "" {
		return ErrSaltKeyMissing
	}
	return nil
}

// ResolveKey returns the secret. An inline Key wins; otherwise KeyFile is
// read and surrounding whitespace is dropped.
func (s SaltConfig) ResolveKey() (string, error) {
	if s.Key != "" {
		return s.Key, nil
	}
	if s.KeyFile == "" {
		return "", ErrSaltKeyMissing
	}
	data, err := os.ReadFile(s.KeyFile)
	if err != nil {
		return "", fmt.Errorf("reading salt key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrSaltKeyMissing, s.KeyFile)
	}
	return key, nil
}
