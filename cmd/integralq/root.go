package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"integralq/internal/config"
	"integralq/internal/infrastructure"
	"integralq/pkg/contracts"
)

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "integralq",
		Short:         "Clean, merge and analyse tabular data",
		Long:          "integralq turns CSV, JSON and Excel files into a cleaned dataset, descriptive statistics, chart specifications and a narrative summary.",
		Version:       contracts.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}
	root.SetVersionTemplate(contracts.GetFullVersionString() + "\n")

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to a YAML config file (default: integralq.yaml or config.yaml when present)")
	flags.StringVar(&c.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newAnalyzeCmd(c),
		newCleanCmd(c),
		newServeCmd(c),
		newVersionCmd(),
	)
	return root
}

// init loads configuration and builds a logger that writes to stderr, so
// stdout stays free for command output.
func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	c.cfg = cfg
	c.logger = infrastructure.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level)
	return nil
}
