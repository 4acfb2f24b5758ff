package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dbstarter/internal/integrity"
	"github.com/mesh-intelligence/dbstarter/internal/lists"
	"github.com/mesh-intelligence/dbstarter/internal/sqlite"
)

type checksumResult struct {
	HashMethod string `json:"hash_method"`
	Checksum   string `json:"checksum"`
	Stored     string `json:"stored,omitempty"`
	Verified   *bool  `json:"verified,omitempty"`
}

func newChecksumCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "checksum",
		Short: "Print the SALT_CHECK derived from the configured key",
		Long: "Derive SALT_CHECK from the salt settings. With --verify, attach the\n" +
			"databases and compare it with the value stored in main.META without\n" +
			"changing anything.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()

			sum, err := integrity.Checksum(s.cfg.Salt)
			if err != nil {
				return err
			}
			res := checksumResult{HashMethod: s.cfg.Salt.HashMethod, Checksum: sum}

			var verr error
			if verify {
				res.Stored, verr = storedChecksum(cmd, s)
				if verr == nil {
					verr = integrity.Verify(res.Stored, sum)
					ok := verr == nil
					res.Verified = &ok
				}
			}

			if flags.jsonMode {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), res.Checksum)
				if res.Verified != nil && *res.Verified {
					fmt.Fprintln(cmd.OutOrStdout(), "SALT_CHECK matches main.META")
				}
			}
			return verr
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "compare with SALT_CHECK stored in main.META")
	return cmd
}

var errStoredUnreadable = errors.New("cannot read stored SALT_CHECK")

// storedChecksum attaches the databases and reads SALT_CHECK. META is read
// only; a database without a ledger yields "".
func storedChecksum(cmd *cobra.Command, s *session) (string, error) {
	defs, err := lists.NewLoader(s.logger).LoadDir(s.cfg.DefsDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errStoredUnreadable, err)
	}
	b := sqlite.NewBackend(s.logger)
	if err := b.Attach(cmd.Context(), defs.Databases); err != nil {
		return "", fmt.Errorf("%w: %w", errStoredUnreadable, err)
	}
	defer b.Detach()

	exists, err := b.TableExists(cmd.Context(), "main", "META")
	if err != nil {
		return "", fmt.Errorf("%w: %w", errStoredUnreadable, err)
	}
	if !exists {
		return "", nil
	}
	stored, err := b.SaltCheck(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("%w: %w", errStoredUnreadable, err)
	}
	return stored, nil
}
