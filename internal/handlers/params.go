package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"forecast-dashboard/internal/models"
)

var openEnd = models.Date(9999, time.December, 31)

// Options carries the display defaults the handlers apply.
type Options struct {
	TopN     int
	TailRows int
	// MaxPairs caps the store × dept combinations one request may ask for.
	MaxPairs int
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = 5
	}
	if o.TailRows <= 0 {
		o.TailRows = 30
	}
	if o.MaxPairs <= 0 {
		o.MaxPairs = 100
	}
	return o
}

func (o Options) checkPairs(stores, depts []int) error {
	if n := len(stores) * len(depts); n > o.MaxPairs {
		return fmt.Errorf("selection covers %d store/dept pairs, at most %d allowed", n, o.MaxPairs)
	}
	return nil
}

// parseWindow reads start and end query parameters. Neither set means the
// whole series; a missing bound is left open and clamped by the engine.
func parseWindow(r *http.Request) (*models.DateWindow, error) {
	q := r.URL.Query()
	startRaw, endRaw := q.Get("start"), q.Get("end")
	if startRaw == "" && endRaw == "" {
		return nil, nil
	}

	w := models.DateWindow{End: openEnd}
	if startRaw != "" {
		start, err := models.ParseDate(startRaw)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		w.Start = start
	}
	if endRaw != "" {
		end, err := models.ParseDate(endRaw)
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		w.End = end
	}
	return &w, nil
}

func parsePair(r *http.Request) (storeID, deptID int, err error) {
	q := r.URL.Query()
	storeID, err = strconv.Atoi(q.Get("store"))
	if err != nil {
		return 0, 0, fmt.Errorf("store must be an integer")
	}
	deptID, err = strconv.Atoi(q.Get("dept"))
	if err != nil {
		return 0, 0, fmt.Errorf("dept must be an integer")
	}
	return storeID, deptID, nil
}

// parseIDList reads a comma separated id list such as "1,2,5".
func parseIDList(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parsePositive(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("expected a non-negative integer, got %q", raw)
	}
	return n, nil
}
