package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewUpgradeCommand creates the upgrade command.
func NewUpgradeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <version>",
		Short: "Switch the store version, clearing every entry",
		Long: `Switch the persisted document to a new version. Every entry is dropped and
the empty document is written under the new version.

Example:
  reactor upgrade 2.0.0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			from := s.store.Version()
			if !s.store.Upgrade(args[0]) {
				return NewExitError(ExitFailure, fmt.Sprintf("version %q is already current", args[0]))
			}
			out := rootOpts.formatter(cmd)
			if out.Format == "text" {
				return out.Success(fmt.Sprintf("upgraded %s -> %s", from, args[0]))
			}
			return out.Success(map[string]any{"from": from, "to": args[0]})
		},
	}
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <name>",
		Short: "Drop one entry from the persisted document",
		Long: `Drop a single named entry from the persisted document and rewrite it.

Example:
  reactor purge settings`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			if !s.store.Purge(args[0]) {
				return NewExitError(ExitFailure, fmt.Sprintf("unknown store %q", args[0]))
			}
			out := rootOpts.formatter(cmd)
			if out.Format == "text" {
				return out.Success("purged " + args[0])
			}
			return out.Success(map[string]any{"purged": args[0]})
		},
	}
}
