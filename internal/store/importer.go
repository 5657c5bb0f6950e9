package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"forecast-dashboard/internal/models"
	"forecast-dashboard/internal/services"
)

// ImportResult counts what an import copied. Failed lists pairs whose
// series file could not be parsed.
type ImportResult struct {
	SummaryRows int
	Series      int
	Failed      []models.PairKey
}

// ImportCSV copies the summary and every series file of src into the store.
// A malformed series file is logged and skipped; the rest still import.
func ImportCSV(ctx context.Context, st *Store, src *services.CSVSource, logger *slog.Logger) (ImportResult, error) {
	var res ImportResult

	rows, err := src.LoadSummary(ctx)
	if err != nil {
		return res, err
	}
	if _, err := services.NewSummaryTable(rows); err != nil {
		return res, err
	}
	if err := st.ReplaceSummary(ctx, rows); err != nil {
		return res, fmt.Errorf("store summary: %w", err)
	}
	res.SummaryRows = len(rows)

	pairs, err := src.ListPairs()
	if err != nil {
		return res, fmt.Errorf("list series: %w", err)
	}

	for _, key := range pairs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		series, err := src.LoadSeries(ctx, key.StoreID, key.DeptID)
		if err != nil {
			if errors.Is(err, services.ErrMalformedData) {
				logger.Error("skipping malformed series", "store_id", key.StoreID, "dept_id", key.DeptID, "error", err)
				res.Failed = append(res.Failed, key)
				continue
			}
			return res, err
		}
		if err := st.ReplaceSeries(ctx, series); err != nil {
			return res, fmt.Errorf("store series %s: %w", key, err)
		}
		res.Series++
	}

	logger.Info("import complete", "summary_rows", res.SummaryRows, "series", res.Series, "failed", len(res.Failed))
	return res, nil
}
