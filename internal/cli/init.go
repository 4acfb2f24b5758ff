package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/dbstarter/internal/lists"
	"github.com/mesh-intelligence/dbstarter/internal/paths"
	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// saltKeyBytes is the size of a generated salt key before hex encoding.
const saltKeyBytes = 32

// Sample definition files written by init when the directory is empty.
const (
	sampleDatabaseList = `PATH|DB_NAME|PURPOSE
db/meta.db|meta|main
db/app.db|app|primary
`
	sampleTables = `DBNAME,TABLENAME,VARNAME,TYPE,LINKS_TO
app,customers,NAME,TEXT,
app,customers,EMAIL,TEXT,
app,orders,TOTAL,REAL,customers
app,orders,PLACED_AT,TEXT,
meta,settings,KEY,TEXT,
meta,settings,VALUE,TEXT,
`
	sampleViews = `VIEW_NAME|SQL
all_settings|SELECT KEY, VALUE FROM settings
`
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a config directory, salt key and sample definitions",
		Long: "Create the configuration directory with config.yaml and a random salt key,\n" +
			"and write sample definition files. Existing files are never overwritten.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := initConfigDir()
	if err != nil {
		return err
	}
	defsDir, err := paths.ResolveDefsDir(flags.defsDir, "")
	if err != nil {
		return fmt.Errorf("resolve defs dir: %w", err)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := writeConfigIfMissing(configPath(configDir), defsDir); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := writeSaltKeyIfMissing(filepath.Join(configDir, defaultKeyFile)); err != nil {
		return fmt.Errorf("write salt key: %w", err)
	}

	if err := os.MkdirAll(defsDir, 0o755); err != nil {
		return fmt.Errorf("create definition directory: %w", err)
	}
	samples := map[string]string{
		lists.DatabaseListFile: sampleDatabaseList,
		lists.TablesFile:       sampleTables,
		lists.ViewsFile:        sampleViews,
	}
	for name, content := range samples {
		if err := writeFileIfMissing(filepath.Join(defsDir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration: %s\nDefinitions:   %s\n", configDir, defsDir)
	return nil
}

// initConfigDir is where init creates the config: flag, then env, then
// ./.dbstarter.
func initConfigDir() (string, error) {
	if flags.configDir != "" || os.Getenv(paths.EnvConfigDir) != "" {
		return paths.ResolveConfigDir(flags.configDir)
	}
	return filepath.Abs(paths.DefaultConfigDirName)
}

// defaultConfig is the content of a new config.yaml.
func defaultConfig(defsDir string) types.Config {
	return types.Config{
		DBVersion: "1.0",
		DefsDir:   defsDir,
		Schema:    types.SchemaConfig{CyclePolicy: string(types.CycleDegrade)},
		Salt: types.SaltConfig{
			HashMethod: defaultHashMethod,
			KeyFile:    defaultKeyFile,
		},
		Log:    types.LogConfig{Level: defaultLogLevel},
		Server: types.ServerConfig{Addr: defaultServerAddr},
	}
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns nil (idempotent).
func writeConfigIfMissing(path, defsDir string) error {
	cfg := defaultConfig(defsDir)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFileIfMissing(path, data, 0o644)
}

// writeSaltKeyIfMissing stores a random hex key readable only by the owner.
func writeSaltKeyIfMissing(path string) error {
	buf := make([]byte, saltKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	return writeFileIfMissing(path, []byte(hex.EncodeToString(buf)+"\n"), 0o600)
}

func writeFileIfMissing(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if os.IsExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
