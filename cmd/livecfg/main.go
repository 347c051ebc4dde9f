// Package main is the entry point for livecfg.
package main

import (
	"context"
	"os"
	"time"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"

	"github.com/omarluq/livecfg/cmd/livecfg/di"
)

var (
	flagDir       string
	flagExt       string
	flagURL       string
	flagS3Bucket  string
	flagS3Prefix  string
	flagCacheTTL  time.Duration
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "livecfg",
	Short: "Inspect and watch dynamic configuration sources",
	Long: `livecfg reads configuration paths from a backing source (a local
directory, an HTTP endpoint, or an S3 bucket), prints their current
contents, and can follow them as they change.

Exactly one of --dir, --url, or --s3-bucket selects the source.`,
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "serve config paths from this directory")
	rootCmd.PersistentFlags().StringVar(&flagExt, "ext", ".json", "file extension appended to paths in --dir mode")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "serve config paths from this HTTP base URL")
	rootCmd.PersistentFlags().StringVar(&flagS3Bucket, "s3-bucket", "", "serve config paths from this S3 bucket")
	rootCmd.PersistentFlags().StringVar(&flagS3Prefix, "s3-prefix", "", "key prefix inside --s3-bucket")
	rootCmd.PersistentFlags().DurationVar(&flagCacheTTL, "cache-ttl", 0, "memoize source reads for this duration (0 disables)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "log format (console, json, pretty)")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

func settingsFromFlags() di.Settings {
	return di.Settings{
		Dir:       flagDir,
		Ext:       flagExt,
		URL:       flagURL,
		S3Bucket:  flagS3Bucket,
		S3Prefix:  flagS3Prefix,
		CacheTTL:  flagCacheTTL,
		LogLevel:  flagLogLevel,
		LogFormat: flagLogFormat,
	}
}
