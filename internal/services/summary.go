package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"forecast-dashboard/internal/models"
)

// SummarySource materializes the accuracy summary table.
type SummarySource interface {
	LoadSummary(ctx context.Context) ([]models.AccuracySummaryRow, error)
}

// SummaryTable is the immutable accuracy summary, built once at startup and
// shared read-only between requests.
type SummaryTable struct {
	rows  []models.AccuracySummaryRow
	index map[models.PairKey]int
}

// NewSummaryTable validates rows and indexes them by pair. Duplicate pairs
// and negative or non-finite metrics are rejected as malformed.
func NewSummaryTable(rows []models.AccuracySummaryRow) (*SummaryTable, error) {
	t := &SummaryTable{
		rows:  slices.Clone(rows),
		index: make(map[models.PairKey]int, len(rows)),
	}
	for i, r := range t.rows {
		if _, dup := t.index[r.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate summary row for %s", ErrMalformedData, r.Key())
		}
		if !validMetric(r.MAPE) || !validMetric(r.RMSE) {
			return nil, fmt.Errorf("%w: invalid metrics for %s", ErrMalformedData, r.Key())
		}
		t.index[r.Key()] = i
	}
	return t, nil
}

func validMetric(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Rows returns a copy of the table in source order.
func (t *SummaryTable) Rows() []models.AccuracySummaryRow {
	return slices.Clone(t.rows)
}

func (t *SummaryTable) Len() int {
	return len(t.rows)
}

func (t *SummaryTable) Lookup(storeID, deptID int) (models.AccuracySummaryRow, bool) {
	i, ok := t.index[models.PairKey{StoreID: storeID, DeptID: deptID}]
	if !ok {
		return models.AccuracySummaryRow{}, false
	}
	return t.rows[i], true
}

// Stores returns the distinct store ids, ascending.
func (t *SummaryTable) Stores() []int {
	return t.distinct(func(r models.AccuracySummaryRow) int { return r.StoreID })
}

// Depts returns the distinct department ids, ascending.
func (t *SummaryTable) Depts() []int {
	return t.distinct(func(r models.AccuracySummaryRow) int { return r.DeptID })
}

func (t *SummaryTable) distinct(field func(models.AccuracySummaryRow) int) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0)
	for _, r := range t.rows {
		v := field(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// ParseSummaryCSV reads a table with the columns Store, Dept, MAPE and RMSE
// in any order. Extra columns are ignored.
func ParseSummaryCSV(r io.Reader) ([]models.AccuracySummaryRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: summary has no header", ErrMalformedData)
		}
		return nil, fmt.Errorf("%w: read summary header: %v", ErrMalformedData, err)
	}

	cols, err := columnIndex(header, "store", "dept", "mape", "rmse")
	if err != nil {
		return nil, err
	}

	var rows []models.AccuracySummaryRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: summary line %d: %v", ErrMalformedData, line, err)
		}

		row, err := parseSummaryRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: summary line %d: %v", ErrMalformedData, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSummaryRecord(record []string, cols map[string]int) (models.AccuracySummaryRow, error) {
	storeID, err := parseID(record[cols["store"]])
	if err != nil {
		return models.AccuracySummaryRow{}, fmt.Errorf("store: %w", err)
	}
	deptID, err := parseID(record[cols["dept"]])
	if err != nil {
		return models.AccuracySummaryRow{}, fmt.Errorf("dept: %w", err)
	}
	mape, err := parseFinite(record[cols["mape"]])
	if err != nil {
		return models.AccuracySummaryRow{}, fmt.Errorf("mape: %w", err)
	}
	rmse, err := parseFinite(record[cols["rmse"]])
	if err != nil {
		return models.AccuracySummaryRow{}, fmt.Errorf("rmse: %w", err)
	}
	return models.AccuracySummaryRow{StoreID: storeID, DeptID: deptID, MAPE: mape, RMSE: rmse}, nil
}

// parseID accepts integer ids, including the "1.0" form float columns are
// written with.
func parseID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid identifier %q", s)
	}
	// float64(math.MaxInt) rounds up to 2^63, which is itself out of range.
	if f < math.MinInt || f >= math.MaxInt {
		return 0, fmt.Errorf("identifier %q out of range", s)
	}
	return int(f), nil
}

// columnIndex maps each required column (case-insensitive) to its position.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(map[string]int, len(required))
	for _, name := range required {
		i, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedData, name)
		}
		cols[name] = i
	}
	return cols, nil
}
