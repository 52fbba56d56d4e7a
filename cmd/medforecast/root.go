// Command medforecast runs medicine demand forecasts offline against a model artifact or an
// inference service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yafet01/drug-prescription-app/logging"
)

var (
	flagLogLevel string
	rootCmd      = &cobra.Command{
		Use:           "medforecast",
		Short:         "medforecast - medicine demand forecasts from the command line",
		Long:          "medforecast: encode requests, run the quantity model and print point estimates and twelve-month trends.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitLoggerWithOptions(logging.Options{Level: flagLogLevel, Console: cmd.ErrOrStderr()})
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level: debug|info|warn|error")
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(medicinesCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
