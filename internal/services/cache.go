package services

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"forecast-dashboard/internal/models"
)

const cacheVersion = "v1"

// SummaryCache stores a parsed summary table as gob so restarts skip the
// CSV parse while the source file is unchanged.
type SummaryCache struct {
	dir string
}

type cachedSummary struct {
	Rows     []models.AccuracySummaryRow
	CachedAt time.Time
}

func NewSummaryCache(dir string) *SummaryCache {
	return &SummaryCache{dir: dir}
}

func (c *SummaryCache) path(source string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(source)
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

// Load returns the cached rows when the cache is newer than modTime.
func (c *SummaryCache) Load(source string, modTime time.Time) ([]models.AccuracySummaryRow, bool) {
	f, err := os.Open(c.path(source))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var data cachedSummary
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, false
	}
	if !modTime.Before(data.CachedAt) {
		return nil, false
	}
	return data.Rows, true
}

func (c *SummaryCache) Save(source string, rows []models.AccuracySummaryRow) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(c.path(source))
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(cachedSummary{Rows: rows, CachedAt: time.Now()})
}

// SeriesVersioner is implemented by loaders that can report when a pair's
// data last changed without reading it.
type SeriesVersioner interface {
	SeriesVersion(storeID, deptID int) (time.Time, error)
}

// CachedLoader memoizes successful loads of an underlying SeriesLoader.
// Concurrent loads of the same pair share a single read. Failures are not
// cached, so a pair whose file appears later is picked up. An entry is
// reloaded when the loader reports a newer version or when it outlives the
// TTL.
type CachedLoader struct {
	next        SeriesLoader
	loadTimeout time.Duration
	ttl         time.Duration
	now         func() time.Time

	group  singleflight.Group
	mu     sync.RWMutex
	series map[models.PairKey]cachedSeries
	hits   atomic.Int64
	misses atomic.Int64
}

type cachedSeries struct {
	series   models.ForecastSeries
	version  time.Time
	loadedAt time.Time
}

type CachedLoaderOption func(*CachedLoader)

// WithCacheLoadTimeout bounds a shared load. It runs detached from the
// callers waiting on it, so one caller giving up does not fail the rest.
func WithCacheLoadTimeout(d time.Duration) CachedLoaderOption {
	return func(c *CachedLoader) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// WithSeriesTTL expires entries after d. Zero keeps them until the version
// changes.
func WithSeriesTTL(d time.Duration) CachedLoaderOption {
	return func(c *CachedLoader) {
		if d >= 0 {
			c.ttl = d
		}
	}
}

func NewCachedLoader(next SeriesLoader, opts ...CachedLoaderOption) *CachedLoader {
	c := &CachedLoader{
		next:        next,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
		series:      make(map[models.PairKey]cachedSeries),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedLoader) LoadSeries(ctx context.Context, storeID, deptID int) (models.ForecastSeries, error) {
	key := models.PairKey{StoreID: storeID, DeptID: deptID}

	var version time.Time
	if v, ok := c.next.(SeriesVersioner); ok {
		mod, err := v.SeriesVersion(storeID, deptID)
		if err != nil {
			c.forget(key)
			return models.ForecastSeries{}, err
		}
		version = mod
	}

	c.mu.RLock()
	e, ok := c.series[key]
	c.mu.RUnlock()
	if ok && c.fresh(e, version) {
		c.hits.Add(1)
		return cloneSeries(e.series), nil
	}

	ch := c.group.DoChan(fmt.Sprintf("%s@%d", key, version.UnixNano()), func() (any, error) {
		c.misses.Add(1)
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		s, err := c.next.LoadSeries(loadCtx, storeID, deptID)
		if err != nil {
			return nil, err
		}
		c.store(key, cachedSeries{series: s, version: version, loadedAt: c.now()})
		return s, nil
	})

	select {
	case <-ctx.Done():
		return models.ForecastSeries{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.ForecastSeries{}, res.Err
		}
		return cloneSeries(res.Val.(models.ForecastSeries)), nil
	}
}

func (c *CachedLoader) fresh(e cachedSeries, version time.Time) bool {
	if !e.version.Equal(version) {
		return false
	}
	return c.ttl == 0 || c.now().Sub(e.loadedAt) < c.ttl
}

// store keeps e unless a load of a newer version already landed.
func (c *CachedLoader) store(key models.PairKey, e cachedSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.series[key]; ok && cur.version.After(e.version) {
		return
	}
	c.series[key] = e
}

func (c *CachedLoader) forget(key models.PairKey) {
	c.mu.Lock()
	delete(c.series, key)
	c.mu.Unlock()
}

func (c *CachedLoader) Stats() map[string]any {
	c.mu.RLock()
	size := len(c.series)
	c.mu.RUnlock()
	return map[string]any{
		"cached_series": size,
		"hits":          c.hits.Load(),
		"misses":        c.misses.Load(),
	}
}

func cloneSeries(s models.ForecastSeries) models.ForecastSeries {
	s.Points = slices.Clone(s.Points)
	return s
}
