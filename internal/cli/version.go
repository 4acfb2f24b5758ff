package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dbstarter/pkg/version"
)

const modulePath = "github.com/mesh-intelligence/dbstarter"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dbstarter version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "dbstarter v%s\nmodule: %s\nruntime: %s\n", version.Version, modulePath, runtime.Version())
			return nil
		},
	}
}
