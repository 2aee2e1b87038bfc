// Package main is the CLI entry point for appsweep.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var (
	errCancelled  = errors.New("cancelled")
	errIncomplete = errors.New("some items were skipped or failed")
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errIncomplete) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "appsweep",
	Short: "Find installed apps and the files they leave behind",
	Long: `appsweep scans the application folders, correlates every app with its
preferences, caches, logs, support data and receipts, and moves selected
leftovers to the Trash.

Nothing is ever deleted permanently. Files of running apps are never touched.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List installed apps and their related files",
	Long:  `Scans the installation roots and prints one line per app with its related-file count and size.`,
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var showCmd = &cobra.Command{
	Use:   "show <app>",
	Short: "Show the related files of one app",
	Long: `Scans, then lists every file correlated with <app>. <app> is a bundle
identifier (exact) or a display name (case-insensitive).
Entries matched by name only are marked "~" and are not selected by default.
With --reveal the bundle is also shown in Finder.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var removeCmd = &cobra.Command{
	Use:   "remove <app>",
	Short: "Move an app's related files to the Trash",
	Long: `Scans, selects the related files of <app> and moves them to the Trash.

By default only identifier-matched files are selected. Files of a running app
are skipped. Afterwards the app is re-checked and any related files still
present are counted. Exit status is 1 if any item was skipped or failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	verbose    bool
	jsonOutput bool
	noProgress bool

	removeBundle     bool
	includeNameMatch bool
	removeCategories []string
	dryRun           bool

	reveal bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/appsweep/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr at debug level")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Do not print progress to stderr")

	scanCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output scan result as JSON")
	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the app record as JSON")
	showCmd.Flags().BoolVar(&reveal, "reveal", false, "Also reveal the application bundle in the file manager")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	removeCmd.Flags().BoolVar(&removeBundle, "bundle", false, "Also move the application bundle itself")
	removeCmd.Flags().BoolVar(&includeNameMatch, "include-name-matches", false, "Also select files matched by display name only")
	removeCmd.Flags().StringSliceVar(&removeCategories, "category", nil, "Only select these categories (preferences, cache, logs, support, agent, receipt, container)")
	removeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the selection without moving anything")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("appsweep %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
