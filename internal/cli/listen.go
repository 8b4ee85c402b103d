package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/reactor/internal/channel"
	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/value"
)

// ListenOptions holds flags for the listen command.
type ListenOptions struct {
	*RootOptions
	Once  bool
	Since int64
}

// NewListenCommand creates the listen command.
func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Follow changes broadcast by other contexts",
		Long: `Attach every persisted instance, then apply and print each change other
contexts broadcast on the configured channel until interrupted.

Example:
  reactor listen --db ./reactor.db
  reactor listen --once --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listen(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "apply pending broadcasts once and exit")
	cmd.Flags().Int64Var(&opts.Since, "since", -1, "replay broadcasts after this seq (default: only new ones)")
	return cmd
}

func listen(opts *ListenOptions, cmd *cobra.Command) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	var chOpts []channel.SQLiteOption
	if opts.Since >= 0 {
		chOpts = append(chOpts, channel.WithCursor(opts.Since))
	}
	s, err := openSession(ctx, opts.RootOptions, chOpts...)
	if err != nil {
		return err
	}
	defer s.close()

	out := opts.formatter(cmd)
	for _, name := range s.store.Names() {
		ok, err := s.attach(name)
		if err != nil || !ok {
			slog.Debug("instance not attached", "store", name, "error", err)
			continue
		}
		inst, _ := s.store.Lookup(name)
		inst.Subscribe(func(ev reactive.Event) {
			if reactive.IsMeta(ev.Path) {
				return
			}
			if err := out.Success(changeView(name, ev)); err != nil {
				slog.Warn("change not printed", "store", name, "error", err)
			}
		}, false, nil, nil)
	}

	if opts.Once {
		if _, err := s.channel.Poll(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to poll broadcast channel", err)
		}
		n := s.store.Flush()
		out.VerboseLog("applied %d broadcasts up to seq %d", n, s.channel.Cursor())
		return nil
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("listening", "channel", s.channel.Name(), "instances", len(s.store.Names()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.channel.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("broadcast listener stopped", "error", err)
		}
	}()

	err = s.store.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "listener error", err)
	}
	slog.Info("listener stopped")
	return nil
}

func changeView(name string, ev reactive.Event) any {
	return changeLine{
		Store:  name,
		Path:   ev.Path,
		Action: string(ev.Action),
		Value:  value.Clone(ev.Value),
	}
}

type changeLine struct {
	Store  string `json:"store" yaml:"store"`
	Path   string `json:"path" yaml:"path"`
	Action string `json:"action" yaml:"action"`
	Value  any    `json:"value" yaml:"value"`
}

func (c changeLine) String() string {
	return fmt.Sprintf("%s %s.%s %s", c.Action, c.Store, c.Path, value.Describe(c.Value))
}
