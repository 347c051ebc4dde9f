package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/omarluq/livecfg/cmd/livecfg/di"
)

var getCmd = &cobra.Command{
	Use:   "get <path> [key]",
	Short: "Print a config path's current contents",
	Long: `Fetch one config path from the selected source and print it. With a
dotted key argument, print only that value from a JSON payload:

  livecfg --dir ./configs get tuning
  livecfg --dir ./configs get tuning limits.max_connections`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	container, err := di.NewContainer(settingsFromFlags())
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

	handle, err := storeSvc.Store.GetRawConfigHandle(args[0])
	if err != nil {
		return err
	}

	raw := handle.Get()
	if len(args) == 2 {
		result := gjson.Get(raw, args[1])
		if !result.Exists() {
			return fmt.Errorf("key %q not found in %q", args[1], args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.String())
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), raw)
	return nil
}
