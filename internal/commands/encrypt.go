package commands

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/logic"
)

// NewEncryptCommand creates a new cobra command for the encrypt subcommand.
func NewEncryptCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "encrypt [flags] model output [xor|hybrid]",
		Aliases: []string{"enc"},
		Short:   "Encrypt a model file into a container",
		Long: `Encrypts model into output. When output is a directory, the container keeps the model's name.

Safetensors-shaped models keep their structural header readable unless --layout=flagged is set.`,
		Args: cobra.RangeArgs(2, 3), //nolint:mnd
		RunE: run(cfg, func(_ context.Context, logger *logrus.Logger, out io.Writer) error {
			return logic.RunEncrypt(cfg, logger, out)
		}),
	}

	flags := cmd.Flags()
	flags.StringP("mode", "m", cfg.Mode, "Encryption mode: xor or hybrid")
	flags.StringP("key", "k", "", "XOR key (32 hex characters), generated when empty")
	flags.StringP("author", "a", cfg.Author, "Author recorded in the container metadata")
	flags.StringP("layout", "l", cfg.Layout, "Container layout: auto, flagged or preserve")
	flags.Bool("legacy-trailer", false, "Write the metadata trailer without a length footer")
	flags.Int("chunk-size", cfg.ChunkSize, "Streaming chunk size in bytes")
	flags.String("public-key", cfg.PublicKey, "RSA public key wrapping the AES key in hybrid mode")
	flags.Bool("reveal-key", false, "Print the AES key of hybrid containers, e.g. to register it with a license authority")

	return cmd
}
