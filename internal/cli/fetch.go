package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/reactor/internal/fetch"
	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/value"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Method  string
	Headers map[string]string
	Body    string
	Array   bool
	Shallow bool
	Timeout time.Duration
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a JSON resource into the persistent store",
		Long: `Send a request and merge its JSON response into the persistent instance
bound to the request. The instance is persisted under the request key and
broadcast like any other edit. Relative URLs resolve against base_url.

Example:
  reactor fetch https://example.com/api/settings
  reactor fetch /todos --array --header Accept=application/json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchResource(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Method, "method", "", "request method (default GET)")
	cmd.Flags().StringToStringVar(&opts.Headers, "header", nil, "request header as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Body, "body", "", "request body")
	cmd.Flags().BoolVar(&opts.Array, "array", false, "start from an empty sequence instead of a record")
	cmd.Flags().BoolVar(&opts.Shallow, "shallow", false, "do not wrap nested values")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

func fetchResource(opts *FetchOptions, target string, cmd *cobra.Command) error {
	httpClient, err := fetch.NewHTTPClient(nil, opts.Timeout)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build HTTP client", err)
	}

	s, err := openSession(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	client := fetch.NewClient(httpClient, s.store, fetch.WithBaseURL(opts.Config.BaseURL))

	var init any = map[string]any{}
	if opts.Array {
		init = []any{}
	}
	res, err := client.Fetch(cmd.Context(), target, init, fetch.Request{
		Method:  opts.Method,
		Header:  opts.Headers,
		Body:    opts.Body,
		Cache:   fetch.CacheReload,
		Shallow: opts.Shallow,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create resource", err)
	}

	st := res.Status()
	data := value.Omit(value.Clone(res.Value()), reactive.MetaKeys()...)
	if st.Err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s %s: %d %s", st.Request.Method, res.URL(), st.Code, st.Text), st.Err)
	}

	out := opts.formatter(cmd)
	if out.Format == "text" {
		return out.Success(fmt.Sprintf("%d %s\n%s", st.Code, st.Text, value.Describe(data)))
	}
	return out.Success(map[string]any{
		"key":    res.Key(),
		"url":    res.URL(),
		"status": st.Code,
		"text":   st.Text,
		"data":   data,
	})
}
