// Command modelseal encrypts and decrypts model containers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/idelchi/modelseal/internal/commands"
	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/errkind"
)

// Global variable for CI stamping.
var version = "unknown - unofficial & generated by unknown" //nolint:gochecknoglobals

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.NewRootCommand(config.Default(), version).ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", errkind.Kind(err), err)

		os.Exit(1)
	}
}
