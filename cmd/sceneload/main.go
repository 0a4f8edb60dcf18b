// Command sceneload drives an entity registry through a series of synthetic scenes: it loads each
// scene in the background while a reader samples the world, damages and disables part of it,
// resets the scene, and finally prints a JSON report of what happened.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, eris.ToString(err, false))
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly above
	}
}

func newRootCmd() *cobra.Command {
	cfg := defaultRunConfig()

	cmd := &cobra.Command{
		Use:           "sceneload",
		Short:         "Load synthetic scenes into an entity registry and report occupancy",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.validate(); err != nil {
				return eris.Wrap(err, "invalid flags")
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	cfg.bindFlags(cmd.Flags())
	return cmd
}
