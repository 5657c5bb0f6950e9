package services

import (
	"cmp"
	"slices"

	"forecast-dashboard/internal/models"
)

// RankByMAPE returns the n rows with the smallest MAPE. Rows with equal MAPE
// keep their table order. The input is not modified.
func RankByMAPE(rows []models.AccuracySummaryRow, n int) ([]models.AccuracySummaryRow, error) {
	if n <= 0 {
		return []models.AccuracySummaryRow{}, nil
	}
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}

	ranked := slices.Clone(rows)
	slices.SortStableFunc(ranked, func(a, b models.AccuracySummaryRow) int {
		return cmp.Compare(a.MAPE, b.MAPE)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}
