package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bililottery",
	Short: "Collect bilibili lottery participants from comments and reactions",
	Long: `bililottery crawls the comment area and the forward/like list of a
bilibili video or dynamic and emits one JSON record per participant,
ready for a lottery draw.

Crawls are paced and throttled to stay under the platform's rate limit.
If the platform cuts the session off anyway, the crawl state is saved so
a later invocation can pick up exactly where it stopped.

Session cookies are resolved from the system keychain, the environment
(BILILOT_SESSDATA, BILILOT_BILI_JCT, BILILOT_BUVID3), or the config file.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors and records")

	rootCmd.SetVersionTemplate(`bililottery {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
