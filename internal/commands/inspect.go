package commands

import (
	"context"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/logic"
)

// NewInspectCommand creates a new cobra command for the inspect subcommand.
func NewInspectCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [flags] files...",
		Short: "Show the layout and metadata of containers",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(cfg, func(_ context.Context, logger *logrus.Logger, out io.Writer) error {
			return logic.RunInspect(cfg, logger, out)
		}),
	}

	cmd.Flags().IntP("parallel", "j", runtime.NumCPU(), "Number of parallel workers, defaults to number of CPUs")

	return cmd
}
