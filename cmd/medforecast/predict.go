package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yafet01/drug-prescription-app/data"
	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/model"
	"github.com/Yafet01/drug-prescription-app/validation"
	"github.com/Yafet01/drug-prescription-app/vocabulary"
)

var predictCmd = &cobra.Command{
	Use:   "predict MEDICINE [MEDICINE...]",
	Short: "Forecast the quantity of one or more medicines for a month",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPredict(cmd.Context(), cmd.OutOrStdout(), predictOpts, args)
	},
}

type predictOptions struct {
	modelPath string
	modelURL  string
	timeout   time.Duration
	year      int
	month     int
	period    string
	season    string
	workers   int
	asJSON    bool
	trend     bool
}

var predictOpts predictOptions

func init() {
	flags := predictCmd.Flags()
	flags.StringVar(&predictOpts.modelPath, "model", "models/medicine_demand.yaml", "path to the YAML model artifact")
	flags.StringVar(&predictOpts.modelURL, "model-url", "", "inference service base URL (overrides --model)")
	flags.DurationVar(&predictOpts.timeout, "timeout", 10*time.Second, "inference service timeout")
	flags.IntVar(&predictOpts.year, "year", time.Now().Year(), "forecast year")
	flags.IntVar(&predictOpts.month, "month", int(time.Now().Month()), "forecast month (1-12)")
	flags.StringVar(&predictOpts.period, "period", "", "free-form date such as 2025-03 or \"March 2025\" (overrides --year and --month)")
	flags.StringVar(&predictOpts.season, "season", "Dry", "season: Wet or Dry")
	flags.IntVar(&predictOpts.workers, "workers", 1, "medicines forecast concurrently")
	flags.BoolVar(&predictOpts.asJSON, "json", false, "print the result as JSON")
	flags.BoolVar(&predictOpts.trend, "trend", false, "also print the twelve-month trend table")
}

func runPredict(ctx context.Context, out io.Writer, opts predictOptions, medicines []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	validator := validation.NewRequestValidator(validation.DefaultMaxMedicines)
	req := forecast.PredictionRequest{
		Year:      opts.year,
		Month:     opts.month,
		Medicines: medicines,
		Season:    opts.season,
	}
	if opts.period != "" {
		year, month, err := validator.ParsePeriod(opts.period)
		if err != nil {
			return err
		}
		req.Year, req.Month = year, month
	}

	req, err := validator.ValidateRequest(req)
	if err != nil {
		return err
	}

	loader := model.NewLoader(opts.modelPath, opts.modelURL, opts.timeout)
	m, info, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	container := data.NewDataContainer()
	container.StoreModel(m, info)

	result, err := forecast.NewForecaster(container, vocabulary.Default(), opts.workers).Forecast(ctx, req)
	if err != nil {
		if result != nil && len(result.Medicines) > 0 {
			_ = printResult(out, result, opts)
		}
		return err
	}

	return printResult(out, result, opts)
}

func printResult(out io.Writer, result *forecast.Result, opts predictOptions) error {
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Request forecast.PredictionRequest `json:"request"`
			Points  []forecast.PointRow        `json:"points"`
			Trend   []forecast.TrendRow        `json:"trend"`
		}{result.Request, result.Points(), result.Trend()})
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tMEDICINE\tDISEASE\tPREDICTED")
	for _, p := range result.Points() {
		disease := p.Disease
		if disease == "" {
			disease = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", p.Month, p.Medicine, disease, p.Predicted)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !opts.trend {
		return nil
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tMEDICINE\tPREDICTED")
	for _, row := range result.Trend() {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\n", row.Month, row.Medicine, row.Predicted)
	}
	return tw.Flush()
}
