package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/vocabulary"
)

var medicinesCmd = &cobra.Command{
	Use:   "medicines",
	Short: "List the medicines the model knows and their disease category",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MEDICINE\tDISEASE")
		for _, m := range vocabulary.Default().Medicines() {
			fmt.Fprintf(tw, "%s\t%s\n", m.Name, m.Disease)
		}
		return tw.Flush()
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Print the model input columns in order",
	Run: func(cmd *cobra.Command, args []string) {
		for i, name := range encoder.FeatureNames {
			fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i, name)
		}
	},
}
