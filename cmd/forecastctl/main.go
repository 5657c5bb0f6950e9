// Package main provides the forecastctl command line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"forecast-dashboard/internal/app"
	"forecast-dashboard/internal/config"
	"forecast-dashboard/internal/models"
	"forecast-dashboard/internal/observability"
	"forecast-dashboard/internal/services"
	"forecast-dashboard/internal/store"
)

type options struct {
	topN   int
	tail   int
	stores []int
	depts  []int
	start  string
	end    string
	output string
	dbPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "forecastctl",
		Short:         "Inspect sales forecasts and their accuracy",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	topCmd := &cobra.Command{
		Use:   "top",
		Short: "List the most accurate forecasts by MAPE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withForecaster(cmd, func(f *services.Forecaster) error {
				return runTop(cmd.OutOrStdout(), f, opts.topN)
			})
		},
	}
	topCmd.Flags().IntVarP(&opts.topN, "limit", "n", 5, "number of forecasts to list")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Show KPIs and trend for store/department selections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := parseWindowFlags(opts.start, opts.end)
			if err != nil {
				return err
			}
			return withForecaster(cmd, func(f *services.Forecaster) error {
				return runReport(cmd.Context(), cmd.OutOrStdout(), f, opts.stores, opts.depts, window, opts.tail)
			})
		},
	}
	reportCmd.Flags().IntSliceVar(&opts.stores, "store", nil, "store ids (default: first store)")
	reportCmd.Flags().IntSliceVar(&opts.depts, "dept", nil, "department ids (default: first department)")
	reportCmd.Flags().IntVar(&opts.tail, "tail", 0, "also print the last n windowed rows")
	addWindowFlags(reportCmd, opts)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the windowed series of one pair as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(opts.stores) != 1 || len(opts.depts) != 1 {
				return fmt.Errorf("export needs exactly one --store and one --dept")
			}
			window, err := parseWindowFlags(opts.start, opts.end)
			if err != nil {
				return err
			}
			return withForecaster(cmd, func(f *services.Forecaster) error {
				return runExport(cmd, f, opts.stores[0], opts.depts[0], window, opts.output)
			})
		},
	}
	exportCmd.Flags().IntSliceVar(&opts.stores, "store", nil, "store id")
	exportCmd.Flags().IntSliceVar(&opts.depts, "dept", nil, "department id")
	exportCmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: Store{s}_Dept{d}_forecast.csv, - for stdout)")
	addWindowFlags(exportCmd, opts)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the CSV forecast directory into SQLite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, opts.dbPath)
		},
	}
	importCmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default: SQLITE_PATH)")

	rootCmd.AddCommand(topCmd, reportCmd, exportCmd, importCmd)
	return rootCmd
}

func addWindowFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.start, "start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.end, "end", "", "window end date (YYYY-MM-DD)")
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, observability.NewLogger(cfg.Logger, os.Stderr), nil
}

func withForecaster(cmd *cobra.Command, fn func(*services.Forecaster) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	f, closeData, err := app.NewForecaster(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeData(); cerr != nil {
			logger.Warn("failed to close data source", "error", cerr)
		}
	}()
	return fn(f)
}

func parseWindowFlags(start, end string) (*models.DateWindow, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	w := models.DateWindow{End: models.Date(9999, 12, 31)}
	if start != "" {
		t, err := models.ParseDate(start)
		if err != nil {
			return nil, fmt.Errorf("--start: %w", err)
		}
		w.Start = t
	}
	if end != "" {
		t, err := models.ParseDate(end)
		if err != nil {
			return nil, fmt.Errorf("--end: %w", err)
		}
		w.End = t
	}
	return &w, nil
}

func runTop(out io.Writer, f *services.Forecaster, n int) error {
	rows, err := f.TopAccurate(n)
	if errors.Is(err, services.ErrEmptyTable) {
		fmt.Fprintln(out, "no forecasts to rank")
		return nil
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "STORE\tDEPT\tMAPE\tRMSE\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%.2f%%\t%.2f\t\n", r.StoreID, r.DeptID, r.MAPE, r.RMSE)
	}
	return tw.Flush()
}

func runReport(ctx context.Context, out io.Writer, f *services.Forecaster, stores, depts []int, window *models.DateWindow, tail int) error {
	if len(stores) == 0 {
		stores = firstOf(f.Stores())
	}
	if len(depts) == 0 {
		depts = firstOf(f.Depts())
	}

	st := newStyles(out)
	var failed int
	for _, res := range f.BuildReports(ctx, stores, depts, window) {
		fmt.Fprintln(out, st.heading.Render(fmt.Sprintf("Store %d - Dept %d", res.Key.StoreID, res.Key.DeptID)))
		if res.Err != nil {
			failed++
			msg := fmt.Sprintf("error: %v", res.Err)
			if errors.Is(res.Err, services.ErrNotFound) {
				msg = fmt.Sprintf("forecast not found for store %d, dept %d", res.Key.StoreID, res.Key.DeptID)
			}
			fmt.Fprintf(out, "  %s\n\n", st.warning.Render(msg))
			continue
		}
		writeReport(out, st, res.Report, tail)
	}
	if failed > 0 && failed == len(stores)*len(depts) {
		return fmt.Errorf("no report could be built for the selection")
	}
	return nil
}

func writeReport(out io.Writer, st styles, r *models.InsightReport, tail int) {
	change := "n/a"
	if r.ChangePct != nil {
		change = strconv.FormatFloat(*r.ChangePct, 'f', 2, 64) + "%"
	}
	window := "empty"
	if r.Window != nil {
		window = r.Window.String()
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  MAPE\t%g%%\n", r.MAPE)
	fmt.Fprintf(tw, "  RMSE\t%g\n", r.RMSE)
	fmt.Fprintf(tw, "  Window\t%s (%d points)\n", window, len(r.Points))
	fmt.Fprintf(tw, "  Total Forecasted Sales\t$%.0f\n", r.ForecastTotal)
	fmt.Fprintf(tw, "  Actual Sales in Range\t$%.0f\n", r.ActualTotal)
	fmt.Fprintf(tw, "  Change\t%s\n", change)
	fmt.Fprintf(tw, "  Trend\t%s: %s\n", st.trend(r.Trend), r.Message)
	if rows := r.Tail(tail); len(rows) > 0 {
		fmt.Fprintln(tw, "\n  DATE\tACTUAL\tFORECAST")
		for _, p := range rows {
			actual := "-"
			if p.Actual != nil {
				actual = strconv.FormatFloat(*p.Actual, 'f', 2, 64)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%.2f\n", p.Date.Format(models.DateLayout), actual, p.Forecast)
		}
	}
	_ = tw.Flush()
	fmt.Fprintln(out)
}

func runExport(cmd *cobra.Command, f *services.Forecaster, storeID, deptID int, window *models.DateWindow, output string) error {
	series, err := f.Window(cmd.Context(), storeID, deptID, window)
	if err != nil {
		return err
	}

	if output == "-" {
		return services.WriteSeriesCSV(cmd.OutOrStdout(), series.Points)
	}
	if output == "" {
		output = services.SeriesFileName(storeID, deptID)
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := services.WriteSeriesCSV(file, series.Points); err != nil {
		_ = file.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(series.Points), output)
	return nil
}

func runImport(cmd *cobra.Command, dbPath string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if dbPath == "" {
		dbPath = cfg.Data.SQLitePath
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("failed to close db", "error", cerr)
		}
	}()

	src := services.NewCSVSource(cfg.Data.ForecastDir,
		services.WithSummaryFile(cfg.Data.SummaryFile),
		services.WithSourceLogger(logger),
	)
	res, err := store.ImportCSV(cmd.Context(), st, src, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d summary rows and %d series into %s\n", res.SummaryRows, res.Series, dbPath)
	for _, k := range res.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "skipped malformed series for %s\n", k)
	}
	return nil
}

func firstOf(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	return ids[:1]
}
