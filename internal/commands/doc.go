// Package commands provides the command-line interface for modelseal.
//
// It implements commands for:
//   - encryption and decryption of model files
//   - RSA key pair generation
//   - container inspection
//   - device fingerprinting and license key requests
//   - a development license authority
//
// Flags, MODELSEAL_* environment variables and an optional modelseal.yaml are merged
// through viper into a single config.Config, validated before any command runs.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/logging"
)

// action is the body of a command, run after the configuration is loaded.
type action func(ctx context.Context, logger *logrus.Logger, out io.Writer) error

// preRun loads the configuration for cmd into cfg and validates it.
func preRun(cfg *config.Config) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		file, err := cmd.Flags().GetString("config")
		if err != nil {
			return fmt.Errorf("reading --config: %w", err)
		}

		v, err := config.NewViper(file)
		if err != nil {
			return err
		}

		if err := config.Load(v, cmd.Flags(), cfg, args); err != nil {
			return err
		}

		return cfg.Validate()
	}
}

// run wraps fn with --show handling and the command logger.
func run(cfg *config.Config, fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()

		if cfg.Show {
			fmt.Fprint(out, cfg)

			return nil
		}

		logger, closeLog, err := logging.New(logging.Options{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			File:   cfg.LogFile,
		})
		if err != nil {
			return err
		}

		defer func() { _ = closeLog() }()

		return fn(cmd.Context(), logger, out)
	}
}
