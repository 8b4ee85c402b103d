package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/reactor/internal/store"
	"github.com/roach88/reactor/internal/value"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [name]",
		Short: "Print the persisted document or one entry",
		Long: `Print the persisted store document, or a single entry when a name is given.

The database is only read: an outdated or malformed document is reported, not
cleared.

Example:
  reactor inspect --db ./reactor.db
  reactor inspect settings --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return inspect(rootOpts, name, cmd)
		},
	}
}

func inspect(opts *RootOptions, name string, cmd *cobra.Command) error {
	db, err := openDatabase(opts.Config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	raw, found, err := db.Read(cmd.Context(), opts.Config.StoreKey)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read document", err)
	}
	if !found {
		return NewExitError(ExitFailure, fmt.Sprintf("no document under key %q", opts.Config.StoreKey))
	}
	doc, err := store.DecodeDocument(raw)
	if err != nil {
		return WrapExitError(ExitFailure, "persisted document is malformed", err)
	}
	if doc.Version != opts.Config.Version {
		opts.formatter(cmd).VerboseLog("document version %s differs from configured %s", doc.Version, opts.Config.Version)
	}

	out := opts.formatter(cmd)
	if name != "" {
		e, ok := doc.Store[name]
		if !ok {
			return NewExitError(ExitFailure, fmt.Sprintf("unknown store %q", name))
		}
		if out.Format == "text" {
			return out.Success(value.Describe(e.Data))
		}
		return out.Success(entryView(e))
	}

	if out.Format == "text" {
		return out.Success(documentText(doc))
	}
	return out.Success(documentView(doc))
}

func entryView(e store.Entry) map[string]any {
	return map[string]any{"data": e.Data, "recursive": e.Recursive}
}

func documentView(doc store.Document) map[string]any {
	entries := make(map[string]any, len(doc.Store))
	for name, e := range doc.Store {
		entries[name] = entryView(e)
	}
	return map[string]any{"version": doc.Version, "store": entries}
}

func documentText(doc store.Document) string {
	names := make([]string, 0, len(doc.Store))
	for name := range doc.Store {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "version %s, %d entries", doc.Version, len(names))
	for _, name := range names {
		e := doc.Store[name]
		layout := "recursive"
		if !e.Recursive {
			layout = "shallow"
		}
		fmt.Fprintf(&b, "\n  %s (%s): %s", name, layout, value.Describe(e.Data))
	}
	return b.String()
}
