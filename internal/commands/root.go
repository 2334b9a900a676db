package commands

import (
	"github.com/spf13/cobra"

	"github.com/idelchi/gogen/pkg/cobraext"
	"github.com/idelchi/modelseal/internal/config"
)

// NewRootCommand creates the root command with common configuration.
// Every subcommand shares cfg; flags, environment and config file are merged before it runs.
func NewRootCommand(cfg *config.Config, version string) *cobra.Command {
	root := cobraext.NewDefaultRootCommand(version)

	root.Use = "modelseal [flags] command [flags]"
	root.Short = "Encrypted model container utility"
	root.Long = `Encrypts model files into self-describing containers and decrypts them again.

Containers use a repeating XOR key or AES-256-CFB with an RSA-OAEP wrapped key. Keys come
from the command line, a local private key or a license authority that binds them to a device.`
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.PersistentPreRunE = preRun(cfg)

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Configuration file, defaults to modelseal.yaml in ., $HOME/.modelseal or /etc/modelseal")
	flags.BoolP("show", "s", false, "Show the configuration and exit")
	flags.String("log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", cfg.LogFormat, "Log format: text or json")
	flags.String("log-file", "", "Write logs to this file instead of stderr")

	root.AddCommand(
		NewEncryptCommand(cfg),
		NewDecryptCommand(cfg),
		NewKeygenCommand(cfg),
		NewInspectCommand(cfg),
		NewFingerprintCommand(cfg),
		NewRequestKeyCommand(cfg),
		NewServeCommand(cfg),
	)

	return root
}
