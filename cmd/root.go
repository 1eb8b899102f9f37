package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oqzl/grokchat/grok"
	"github.com/oqzl/grokchat/internal/config"
)

type rootOptions struct {
	cfgFile string
	verbose bool
	input   lineReader
}

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	root := newRootCmd(nil)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Report prints err to w and returns the process exit code: 0 on success or
// interruption, 2 when the API rejected a request, 1 otherwise.
func Report(w io.Writer, err error) int {
	var apiErr *grok.APIError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(w, "interrupted")
		return 0
	case errors.As(err, &apiErr):
		fmt.Fprintf(w, "grokchat: %v (HTTP %d)\n", err, apiErr.StatusCode)
		return 2
	default:
		fmt.Fprintf(w, "grokchat: %v\n", err)
		return 1
	}
}

// newRootCmd builds the command tree. in replaces the interactive prompt of
// the chat command when non-nil.
func newRootCmd(in lineReader) *cobra.Command {
	opts := &rootOptions{input: in}

	root := &cobra.Command{
		Use:   "grokchat",
		Short: "Chat with Grok models from the terminal",
		Long: `grokchat is a terminal client for the xAI Grok chat completion API.

Settings are read from a YAML file and may be overridden with GROK_*
environment variables (GROK_API_KEY, GROK_MODEL, GROK_BASE_URL, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "grokchat.yaml", "config file path")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newModelsCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newServeCmd())

	return root
}

func (o *rootOptions) client() (*grok.Client, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured: set api_key in %s or %sAPI_KEY", o.cfgFile, config.EnvPrefix)
	}
	return grok.New(append(cfg.ClientOptions(), grok.WithLogger(slog.Default()))...), nil
}
