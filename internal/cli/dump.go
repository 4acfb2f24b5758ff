package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dbstarter/internal/sqlite"
)

func newDumpCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "dump <dir>",
		Short: "Bootstrap the databases and dump every table to files",
		Long: "Run start, then write each table of each attached database to\n" +
			"<dir>/<database>.<table>.<format> with a dumped_tables.csv manifest.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := sqlite.ParseDumpFormat(format)
			if err != nil {
				return fmt.Errorf("%w: %s", errUsage, err)
			}

			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()

			b, _, err := s.start(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer b.Detach()

			m, err := b.Dump(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), m)
			}
			for _, e := range m.Entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s\t%d rows\t%s\n", e.Database, e.Table, e.Rows, e.File)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(sqlite.DumpCSV), "output format: csv or parquet")
	return cmd
}
