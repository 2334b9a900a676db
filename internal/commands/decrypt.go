package commands

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/logic"
)

// NewDecryptCommand creates a new cobra command for the decrypt subcommand.
func NewDecryptCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decrypt [flags] container output-dir [key|private-key-file]",
		Aliases: []string{"dec"},
		Short:   "Decrypt a container into a directory",
		Long: `Decrypts container into output-dir, dropping a trailing .enc from its name.

The key is taken from the third argument, --key, --private-key or, failing those,
requested from the license authority at --license-url.`,
		Args: cobra.RangeArgs(2, 3), //nolint:mnd
		RunE: run(cfg, func(ctx context.Context, logger *logrus.Logger, out io.Writer) error {
			return logic.RunDecrypt(ctx, cfg, logger, out)
		}),
	}

	flags := cmd.Flags()
	flags.StringP("key", "k", "", "XOR key (32 hex characters)")
	flags.String("private-key", cfg.PrivateKey, "RSA private key unwrapping hybrid containers")
	flags.Int("chunk-size", cfg.ChunkSize, "Streaming chunk size in bytes")
	flags.Bool("strict-integrity", false, "Fail and remove the output on an MD5 mismatch")
	addLicenseFlags(cmd, cfg)

	return cmd
}

// addLicenseFlags adds the flags of the license client.
func addLicenseFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.String("license-url", "", "License authority endpoint")
	flags.String("api-key", "", "API key presented to the license authority")
	flags.Duration("timeout", cfg.Timeout, "License request timeout")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification of the license authority")
}
