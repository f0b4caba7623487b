package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"arendls/internal/version"
)

var (
	versionFormat   string
	versionShowHash bool
	versionShowDate bool
	versionShowFull bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShowHash, "hash", false, "include git commit hash")
	versionCmd.Flags().BoolVar(&versionShowDate, "date", false, "include build timestamp")
	versionCmd.Flags().BoolVar(&versionShowFull, "full", false, "show every recorded bit of build metadata")
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fields := version.Fields{
			Hash: versionShowHash || versionShowFull,
			Date: versionShowDate || versionShowFull,
		}
		info := version.Current()
		switch strings.ToLower(versionFormat) {
		case "json":
			return version.WriteJSON(cmd.OutOrStdout(), info, fields)
		case "pretty":
			enabled, err := colorEnabled(cmd)
			if err != nil {
				return err
			}
			color.NoColor = !enabled
			version.WritePretty(cmd.OutOrStdout(), info, fields)
			return nil
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
	},
}
