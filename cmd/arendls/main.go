package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"arendls/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "arendls",
	Short: "Language server for the Arend proof assistant",
	Long: `arendls speaks the Language Server Protocol for Arend libraries.
Without a subcommand it serves over stdio, like "arendls serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	rootCmd.Version = version.Current().Version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to arendls.toml (default: user config directory)")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.Bool("cache", false, "cache parsed modules on disk")
	flags.String("cache-dir", "", "parse cache directory (default: user cache directory)")
	flags.StringSlice("library-dir", nil, "extra directory searched for library dependencies")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 0, "events kept by the ring tracer")
	flags.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval")
	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a runtime trace to this file")

	addServeFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
