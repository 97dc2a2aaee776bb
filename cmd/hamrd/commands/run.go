package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hamr-launcher/hamrd/config"
	"github.com/hamr-launcher/hamrd/daemon"
	hamrerrors "github.com/hamr-launcher/hamrd/errors"
	"github.com/hamr-launcher/hamrd/logger"
)

// RunCmd starts the daemon in the foreground and blocks until it is asked
// to shut down, either via the shutdown RPC notification or a terminal
// signal.
var RunCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"start", "daemon"},
	Short:   "Start the hamrd daemon",
	Long:    `Launch the hamrd daemon: binds its Unix socket, discovers and supervises plugins, and serves UI/control connections until shut down.`,
	RunE:    runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	paths := daemon.ResolvePaths()

	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return hamrerrors.Wrapf(err, "loading config %s", paths.ConfigFile)
	}

	d := daemon.New(paths, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Run(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return hamrerrors.Wrap(err, "daemon exited with error")
		}
		return nil

	case <-sigChan:
		logger.Info("shutdown signal received, stopping gracefully (press again to force)")
		cancel()

		select {
		case err := <-errChan:
			if err != nil {
				return hamrerrors.Wrap(err, "daemon shutdown error")
			}
			fmt.Println("hamrd stopped cleanly")
			return nil
		case <-sigChan:
			logger.Warn("force shutdown requested, exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}
