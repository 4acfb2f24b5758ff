package types

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DBVersion: "1.0",
		Salt: SaltConfig{
			HashMethod: "SHA256",
			Key:        "pepper",
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing db_version",
			mutate:  func(c *Config) { c.DBVersion = "" },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "missing hash method",
			mutate:  func(c *Config) { c.Salt.HashMethod = "" },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "unsupported hash method",
			mutate:  func(c *Config) { c.Salt.HashMethod = "CRC32" },
			wantErr: ErrUnsupportedHashMethod,
		},
		{
			name:    "negative truncation",
			mutate:  func(c *Config) { c.Salt.TruncationLength = -1 },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "no key and no key file",
			mutate:  func(c *Config) { c.Salt.Key = "" },
			wantErr: ErrSaltKeyMissing,
		},
		{
			name:   "key file instead of key",
			mutate: func(c *Config) { c.Salt.Key = ""; c.Salt.KeyFile = "db_salt.txt" },
		},
		{
			name:    "unknown cycle policy",
			mutate:  func(c *Config) { c.Schema.CyclePolicy = "ignore" },
			wantErr: ErrInvalidConfig,
		},
		{
			name:   "reject cycle policy",
			mutate: func(c *Config) { c.Schema.CyclePolicy = "reject" },
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSaltConfigResolveKey(t *testing.T) {
	t.Run("inline key wins over key file", func(t *testing.T) {
		s := SaltConfig{Key: "inline", KeyFile: "/does/not/exist"}
		key, err := s.ResolveKey()
		require.NoError(t, err)
		assert.Equal(t, "inline", key)
	})

	t.Run("key file is trimmed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db_salt.txt")
		require.NoError(t, os.WriteFile(path, []byte("  s3cret\n"), 0o600))
		key, err := SaltConfig{KeyFile: path}.ResolveKey()
		require.NoError(t, err)
		assert.Equal(t, "s3cret", key)
	})

	t.Run("empty key file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db_salt.txt")
		require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))
		_, err := SaltConfig{KeyFile: path}.ResolveKey()
		assert.ErrorIs(t, err, ErrSaltKeyMissing)
	})

	t.Run("missing key file", func(t *testing.T) {
		_, err := SaltConfig{KeyFile: filepath.Join(t.TempDir(), "nope")}.ResolveKey()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParseCyclePolicy(t *testing.T) {
	p, err := ParseCyclePolicy("")
	require.NoError(t, err)
	assert.Equal(t, CycleDegrade, p)

	p, err = ParseCyclePolicy(" Reject ")
	require.NoError(t, err)
	assert.Equal(t, CycleReject, p)

	_, err = ParseCyclePolicy("skip")
	assert.ErrorIs(t, err, ErrUnknownCyclePolicy)
}
