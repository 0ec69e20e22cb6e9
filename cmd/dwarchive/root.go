package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"dwarchive/pkg/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string

	// Export flags
	sessionCookie string
	outputPath    string
	exitTimeout   int
	debugHTTP     bool
	skipProducts  bool
	skipImages    bool
	skipRatings   bool
	remember      bool
)

// rootCmd runs a full export when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "dwarchive",
	Short: "Archive a DaWanda seller account into a zip file",
	Long: `dwarchive logs into a DaWanda account and saves its profile, ratings,
products and product images into a single zip archive.

Without a session cookie (--session, DWARCHIVE_SESSION or a remembered
session) the user name and password are asked for interactively.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		code := runExport(ctx, newEnv(), configFile, exportFlags(cmd.Flags()), remember)
		stop()
		if code != 0 {
			os.Exit(code)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.dwarchive.yaml or ~/.config/dwarchive/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	flags := rootCmd.Flags()
	flags.StringVar(&sessionCookie, "session", "", "session cookie value; skips the login prompt")
	flags.StringVarP(&outputPath, "output", "o", "", "archive path (default dawanda_<date>_<time>.zip)")
	flags.IntVar(&exitTimeout, "exit-timeout", 5, "seconds to wait before exiting")
	flags.BoolVar(&debugHTTP, "debug", false, "log every HTTP exchange")
	flags.BoolVar(&skipProducts, "skip-products", false, "do not export products or images")
	flags.BoolVar(&skipImages, "skip-images", false, "do not download product images")
	flags.BoolVar(&skipRatings, "skip-ratings", false, "do not export ratings")
	flags.BoolVar(&remember, "remember", false, "store the session for later runs")

	rootCmd.SetVersionTemplate(`dwarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// exportFlags collects the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects.
func exportFlags(fs *pflag.FlagSet) map[string]interface{} {
	flags := make(map[string]interface{})
	for _, name := range []string{"session", "output", "log-level"} {
		if fs.Changed(name) {
			if v, err := fs.GetString(name); err == nil {
				flags[name] = v
			}
		}
	}
	if fs.Changed("exit-timeout") {
		if v, err := fs.GetInt("exit-timeout"); err == nil {
			flags["exit-timeout"] = v
		}
	}
	for _, name := range []string{"debug", "skip-products", "skip-images", "skip-ratings"} {
		if fs.Changed(name) {
			if v, err := fs.GetBool(name); err == nil {
				flags[name] = v
			}
		}
	}
	return flags
}
