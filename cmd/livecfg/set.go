package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var setCmd = &cobra.Command{
	Use:   "set <path> <key> <value>",
	Short: "Edit one key in a directory-backed JSON config",
	Long: `Rewrite a single dotted key inside {dir}/{path}{ext} in place. The
file's modification time advances, so running stores pick the change up on
their next poll:

  livecfg --dir ./configs set tuning limits.max_connections 200`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	if flagDir == "" {
		return errors.New("set requires --dir")
	}

	file := filepath.Join(flagDir, args[0]+flagExt)
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	updated, err := setKey(string(raw), args[1], args[2])
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", args[1], err)
	}

	if err := os.WriteFile(file, []byte(updated), 0o644); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), updated)
	return nil
}

// setKey applies value at the dotted key. A value that parses as JSON is
// spliced in as-is, so numbers, booleans, and objects keep their type;
// anything else is stored as a string.
func setKey(doc, key, value string) (string, error) {
	if gjson.Valid(value) {
		return sjson.SetRaw(doc, key, value)
	}
	return sjson.Set(doc, key, value)
}
