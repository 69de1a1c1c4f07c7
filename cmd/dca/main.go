package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using system environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "dca",
		Short: "Arps decline-curve analysis for well production histories",
		Long: `Fit exponential, harmonic and hyperbolic Arps declines to daily production
data and answer forecast and EUR queries.

Settings come from built-in defaults, an optional YAML file (--config or
DCA_CONFIG), DCA_* environment variables and finally these flags.`,
		SilenceUsage: true,
	}

	opts.register(rootCmd)
	rootCmd.AddCommand(
		newFitCmd(opts),
		newForecastCmd(opts),
		newCompareCmd(opts),
		newEURCmd(opts),
	)
	return rootCmd
}

func newFitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fit",
		Short: "Fit one decline model to a well",
		Long: `Fit one rate-vs-time decline model and print its parameters.

Example: dca fit --file Volve.xlsx --well "15/9-F-14" --model hyperbolic --window 150`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			req, err := rt.request()
			if err != nil {
				return err
			}
			req.TargetRate = 0

			report, err := rt.service.Analyze(cmd.Context(), rt.records, req)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if err := rt.writeReport(report); err != nil {
				return err
			}
			return rt.finish()
		},
	}
}

func newForecastCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "forecast",
		Short: "Fit a model and forecast time and cumulative at a target rate",
		Long: `Fit one rate-vs-time decline model, then report when the well reaches the
target rate and how much it will have produced by then.

Example: dca forecast --file Volve.xlsx --well "15/9-F-14" --target-rate 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			req, err := rt.request()
			if err != nil {
				return err
			}
			if req.TargetRate <= 0 {
				return fmt.Errorf("forecast needs a positive --target-rate")
			}

			report, err := rt.service.Analyze(cmd.Context(), rt.records, req)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if err := rt.writeReport(report); err != nil {
				return err
			}
			return rt.finish()
		},
	}
}

func newCompareCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Fit every decline model and rank them by AIC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			req, err := rt.request()
			if err != nil {
				return err
			}

			cmp, err := rt.service.Compare(cmd.Context(), rt.records, req)
			if err != nil {
				return err
			}
			printComparison(cmd.OutOrStdout(), cmp)
			if opts.report != "" {
				if err := rt.writer.WriteComparison(opts.report, cmp); err != nil {
					return err
				}
			}
			return rt.finish()
		},
	}
}

func newEURCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "eur",
		Short: "Fit the hyperbolic rate-vs-cumulative relation and estimate recovery",
		Long: `Fit the hyperbolic decline against cumulative production instead of time and
report the recoverable volume. With --target-rate, also report the time and
cumulative production at that rate.

Example: dca eur --file Volve.xlsx --well "15/9-F-14" --channel gas --target-rate 20000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			req, err := rt.request()
			if err != nil {
				return err
			}

			report, err := rt.service.EUR(cmd.Context(), rt.records, req)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if err := rt.writeReport(report); err != nil {
				return err
			}
			return rt.finish()
		},
	}
}
