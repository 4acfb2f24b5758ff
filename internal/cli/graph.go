package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dbstarter/internal/lists"
	"github.com/mesh-intelligence/dbstarter/internal/schema"
)

func newGraphCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Write the table link graph in Graphviz DOT format",
		Long: "Read the definition files and write one node per table and one edge per\n" +
			"link. No database is opened. Render the output with dot -Tsvg.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()

			defs, err := lists.NewLoader(s.logger).LoadDir(s.cfg.DefsDir)
			if err != nil {
				return err
			}
			canon := func(name string) string {
				sch, _ := defs.Databases.SchemaFor(name)
				return sch
			}
			tables, err := schema.Group(defs.Columns, canon)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return schema.WriteDOT(w, schema.NewGraph(tables))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
