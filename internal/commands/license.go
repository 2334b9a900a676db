package commands

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/license"
	"github.com/idelchi/modelseal/internal/logic"
)

// NewFingerprintCommand creates a new cobra command for the fingerprint subcommand.
func NewFingerprintCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the device descriptor sent to the license authority",
		Args:  cobra.NoArgs,
		RunE: run(cfg, func(ctx context.Context, logger *logrus.Logger, out io.Writer) error {
			return logic.RunFingerprint(ctx, license.SystemProbe{Logger: logger}, out)
		}),
	}
}

// NewRequestKeyCommand creates a new cobra command for the request-key subcommand.
func NewRequestKeyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request-key [flags]",
		Short: "Request the decryption key of this device from the license authority",
		Args:  cobra.NoArgs,
		RunE: run(cfg, func(ctx context.Context, logger *logrus.Logger, out io.Writer) error {
			return logic.RunRequestKey(ctx, cfg, logger, out)
		}),
	}

	addLicenseFlags(cmd, cfg)

	return cmd
}

// NewServeCommand creates a new cobra command for the serve subcommand.
func NewServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Run a development license authority",
		Long: `Serves the key exchange at /api/verify-key and Prometheus metrics at /metrics.

Grants are read from the YAML file at --grants. Device bindings live in memory only.`,
		Args: cobra.NoArgs,
		RunE: run(cfg, func(ctx context.Context, logger *logrus.Logger, out io.Writer) error {
			return logic.RunServe(ctx, cfg, logger, out)
		}),
	}

	flags := cmd.Flags()
	flags.String("listen", cfg.Listen, "Listen address")
	flags.String("grants", "", "YAML file with the API key grants")
	flags.String("tls-cert", "", "TLS certificate, enables HTTPS together with --tls-key")
	flags.String("tls-key", "", "TLS private key")

	return cmd
}
