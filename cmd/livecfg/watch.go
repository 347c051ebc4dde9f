package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/omarluq/livecfg/cmd/livecfg/di"
)

var flagInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Follow a config path and print each new version",
	Long: `Register a handle for one config path, poll the source on an
interval, and print the payload every time its modification marker
advances. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagInterval, "interval", 2*time.Second, "source poll interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	settings := settingsFromFlags()
	settings.PollInterval = flagInterval

	container, err := di.NewContainer(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = container.Shutdown()
	}()

	storeSvc, err := di.Invoke[*di.StoreService](container)
	if err != nil {
		return err
	}
	loggerSvc, err := di.Invoke[*di.LoggerService](container)
	if err != nil {
		return err
	}

	path := args[0]
	logger := loggerSvc.Logger.With().
		Str("session_id", uuid.NewString()).
		Str("path", path).
		Logger()

	handle, err := storeSvc.Store.GetRawConfigHandle(path)
	if err != nil {
		return err
	}
	watcher, err := handle.Watcher()
	if err != nil {
		return err
	}

	// Print the current version first, then every change.
	fmt.Fprintln(cmd.OutOrStdout(), handle.Get())
	logger.Info().Dur("interval", flagInterval).Msg("watching")

	for {
		value, err := watcher.WaitForNext(cmd.Context())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("watch stopped")
				return nil
			}
			return err
		}
		logger.Info().Msg("config changed")
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
}
