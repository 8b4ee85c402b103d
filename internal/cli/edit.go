package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/value"
)

// EditOptions holds flags for set and delete.
type EditOptions struct {
	*RootOptions
	Shallow bool
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <name> <path> <json>",
		Short: "Assign a value inside a persistent instance",
		Long: `Assign a JSON value at a dotted path of a persistent instance, persist the
document and broadcast the change to every listening context.

A name that is not persisted yet is created as an empty record.

Example:
  reactor set settings theme '"dark"'
  reactor set todos 0.done true`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := value.Unmarshal([]byte(args[2]))
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid JSON value", err)
			}
			return edit(opts, cmd, args[0], args[1], reactive.ActionSet, v)
		},
	}

	cmd.Flags().BoolVar(&opts.Shallow, "shallow", false, "create a new instance without recursive wrapping")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "delete <name> <path>",
		Short: "Remove a field or element from a persistent instance",
		Long: `Remove the value at a dotted path of a persistent instance, persist the
document and broadcast the change.

Example:
  reactor delete settings theme`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(opts, cmd, args[0], args[1], reactive.ActionDelete, nil)
		},
	}
}

func edit(opts *EditOptions, cmd *cobra.Command, name, path string, action reactive.Action, v any) error {
	if path == "" {
		return NewExitError(ExitCommandError, "path must not be empty")
	}

	s, err := openSession(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	attached, err := s.attach(name)
	if err != nil {
		return err
	}
	if !attached {
		if action == reactive.ActionDelete {
			return NewExitError(ExitFailure, fmt.Sprintf("unknown store %q", name))
		}
		if _, err := s.register(name, map[string]any{}, !opts.Shallow); err != nil {
			return err
		}
	}
	inst, _ := s.store.Lookup(name)

	var applyErr error
	s.store.Do(func() {
		if action == reactive.ActionDelete {
			applyErr = reactive.DeletePath(inst, path)
			return
		}
		applyErr = reactive.SetPath(inst, path, v)
	})
	if applyErr != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s %s.%s failed", action, name, path), applyErr)
	}
	slog.Info("persistent instance edited", "store", name, "path", path, "action", action)

	s.store.Release(name)
	out := opts.formatter(cmd)
	e := s.store.Snapshot().Store[name]
	if out.Format == "text" {
		return out.Success(value.Describe(e.Data))
	}
	return out.Success(entryView(e))
}
