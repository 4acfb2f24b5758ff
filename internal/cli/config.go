package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/dbstarter/internal/paths"
	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "DBSTARTER"

	// Config keys.
	cfgKeyDBVersion        = "db_version"
	cfgKeyDefsDir          = "defs_dir"
	cfgKeyCyclePolicy      = "schema.cycle_policy"
	cfgKeyHashMethod       = "salt.hash_method"
	cfgKeySaltKey          = "salt.key"
	cfgKeySaltKeyFile      = "salt.key_file"
	cfgKeyTruncationLength = "salt.truncation_length"
	cfgKeyLogLevel         = "log.level"
	cfgKeyLogDevelopment   = "log.development"
	cfgKeyServerAddr       = "server.addr"
)

// Defaults for keys config.yaml may leave out.
const (
	defaultHashMethod = string(types.HashSHA256)
	defaultKeyFile    = "db_salt.txt"
	defaultLogLevel   = "info"
	defaultServerAddr = ":8089"
)

// loadedConfig is the validated configuration plus where it came from.
type loadedConfig struct {
	types.Config
	ConfigDir string
	// File is the config file read, empty when none was found.
	File string
}

// loadConfig reads config.yaml from the resolved config directory using Viper.
// DBSTARTER_* environment variables override file values. A missing
// config.yaml is not an error; validation then reports what is missing.
func loadConfig() (*loadedConfig, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyDBVersion, "")
	v.SetDefault(cfgKeyDefsDir, "")
	v.SetDefault(cfgKeyCyclePolicy, string(types.CycleDegrade))
	v.SetDefault(cfgKeyHashMethod, defaultHashMethod)
	v.SetDefault(cfgKeySaltKey, "")
	v.SetDefault(cfgKeySaltKeyFile, defaultKeyFile)
	v.SetDefault(cfgKeyTruncationLength, 0)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogDevelopment, false)
	v.SetDefault(cfgKeyServerAddr, defaultServerAddr)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	lc := &loadedConfig{ConfigDir: configDir}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read config: %s", types.ErrInvalidConfig, err)
		}
	} else {
		lc.File = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&lc.Config); err != nil {
		return nil, fmt.Errorf("%w: decode config: %s", types.ErrInvalidConfig, err)
	}

	if flags.logLevel != "" {
		lc.Log.Level = flags.logLevel
	}
	// A relative key file lives next to config.yaml.
	lc.Salt.KeyFile = paths.ResolveRelative(configDir, lc.Salt.KeyFile)

	defsDir, err := paths.ResolveDefsDir(flags.defsDir, lc.DefsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve defs dir: %w", err)
	}
	lc.DefsDir = defsDir

	if err := lc.Validate(); err != nil {
		return nil, err
	}
	return lc, nil
}

// configPath returns config.yaml inside dir.
func configPath(dir string) string {
	return filepath.Join(dir, paths.ConfigFileName)
}
