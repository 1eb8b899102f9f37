package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oqzl/grokchat/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the configuration file",
	}
	cmd.AddCommand(newConfigSaveCmd(opts))
	return cmd
}

func newConfigSaveCmd(opts *rootOptions) *cobra.Command {
	var (
		output  string
		model   string
		system  string
		baseURL string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write the effective configuration to disk",
		Long: `save loads the configuration file and GROK_* environment, applies the
flags given here and writes the result as YAML. The API key is never
written; keep it in GROK_API_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}

			if model != "" {
				cfg.Model = model
			}
			if cmd.Flags().Changed("system") {
				cfg.SystemPrompt = system
			}
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			if timeout > 0 {
				cfg.Timeout = timeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			path := output
			if path == "" {
				path = opts.cfgFile
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (defaults to --config)")
	cmd.Flags().StringVar(&model, "model", "", "default model")
	cmd.Flags().StringVar(&system, "system", "", "default system prompt")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API origin")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "request timeout, e.g. 30s")
	return cmd
}
