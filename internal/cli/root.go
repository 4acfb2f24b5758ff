// Package cli implements the dbstarter command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	defsDir   string
	logLevel  string
	jsonMode  bool
}

var flags rootFlags

// NewRootCmd creates the top-level "dbstarter" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags = rootFlags{}

	root := &cobra.Command{
		Use:   "dbstarter",
		Short: "Bootstrap SQLite databases from definition files",
		Long: "dbstarter attaches the databases listed in db_list.csv, creates the tables\n" +
			"described in def_tables.csv, keeps a META ledger of every launch, checks\n" +
			"the stored integrity checksum and creates the views in views.csv.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: ./.dbstarter or the platform config dir)")
	root.PersistentFlags().StringVar(&flags.defsDir, "defs-dir", "", "definition directory (default: ./init_tables)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newChecksumCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newDumpCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
	os.Exit(exitSuccess)
}

// reportError prints err and returns the exit code for it.
func reportError(w io.Writer, err error) int {
	fmt.Fprintf(w, "Error: %s\n", err)
	return exitCode(err)
}

// userErrors are problems the user can fix in config or definition files.
var userErrors = []error{
	types.ErrInvalidConfig,
	types.ErrMissingField,
	types.ErrMalformedRow,
	types.ErrDuplicateDatabase,
	types.ErrNoMainDatabase,
	types.ErrMultipleMainDatabases,
	types.ErrUnknownPurpose,
	types.ErrUnsupportedHashMethod,
	types.ErrSaltKeyMissing,
	types.ErrUnknownCyclePolicy,
	types.ErrDuplicateColumn,
	types.ErrInvalidLink,
	types.ErrCyclicSchema,
	types.ErrUnknownDatabase,
	errUsage,
}

var errUsage = errors.New("usage error")

// exitCode maps an error to exitUserError or exitSysError.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}
