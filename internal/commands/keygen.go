package commands

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/logic"
)

// NewKeygenCommand creates a new cobra command for the keygen subcommand.
func NewKeygenCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keygen [flags]",
		Aliases: []string{"gen"},
		Short:   "Generate an RSA key pair for hybrid mode",
		Args:    cobra.NoArgs,
		RunE: run(cfg, func(_ context.Context, logger *logrus.Logger, out io.Writer) error {
			return logic.RunKeygen(cfg, logger, out)
		}),
	}

	flags := cmd.Flags()
	flags.Int("bits", cfg.Bits, "RSA modulus size")
	flags.String("public-key", cfg.PublicKey, "Public key output path")
	flags.String("private-key", cfg.PrivateKey, "Private key output path")

	return cmd
}
