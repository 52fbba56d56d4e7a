package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	Version = "v0.1"
	build   = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show medforecast version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "medforecast %s (%s)\n", Version, build)
	},
}
