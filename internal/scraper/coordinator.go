package scraper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peterkacmarik/course-scraper/internal/progress"
)

// Coordinator wraps a Fetcher with an admission gate of fixed capacity. It is
// the unit of reuse for all three fetch stages: given an ordered URL list it
// returns results in the same order, with at most `limit` fetches in flight,
// and with per-URL failures captured as values instead of errors.
type Coordinator struct {
	fetcher Fetcher
	limit   int
	logger  *zap.Logger
	hub     *progress.Hub
	clock   Clock
}

// NewCoordinator builds a Coordinator. limit must be >= 1.
func NewCoordinator(fetcher Fetcher, limit int, logger *zap.Logger, hub *progress.Hub, clock Clock) *Coordinator {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		fetcher: fetcher,
		limit:   limit,
		logger:  logger,
		hub:     hub,
		clock:   clock,
	}
}

// FetchAll fetches every URL with bounded parallelism. The returned slice has
// exactly len(urls) entries and entry i always corresponds to urls[i],
// regardless of completion order. A failed fetch occupies its slot with an
// empty HTML value; FetchAll itself never fails.
func (c *Coordinator) FetchAll(ctx context.Context, runID string, stage progress.Stage, urls []string) []FetchResult {
	results := make([]FetchResult, len(urls))
	slots := make(chan struct{}, c.limit)

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(index int, target string) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()
			results[index] = c.fetchOne(ctx, runID, stage, index, target)
		}(i, url)
	}
	wg.Wait()
	return results
}

// fetchOne performs a single admission-gated fetch. The slot is held for the
// whole attempt and released unconditionally by the caller's defer, so slot
// accounting cannot leak on timeout or error.
func (c *Coordinator) fetchOne(ctx context.Context, runID string, stage progress.Stage, index int, url string) FetchResult {
	start := c.now()
	c.emit(progress.Event{
		RunID: runID,
		TS:    start,
		Kind:  progress.KindFetchStart,
		Stage: stage,
		URL:   url,
		Index: index,
	})

	html, err := c.fetcher.Fetch(ctx, url)
	elapsed := c.now().Sub(start)

	status := progress.FetchOK
	if err != nil {
		status = progress.FetchFailed
		html = ""
		c.logger.Warn("fetch failed",
			zap.String("url", url),
			zap.Int("index", index),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	} else {
		c.logger.Debug("page fetched",
			zap.String("url", url),
			zap.Int("index", index),
			zap.String("stage", string(stage)),
		)
	}

	evt := progress.Event{
		RunID:  runID,
		TS:     c.now(),
		Kind:   progress.KindFetchDone,
		Stage:  stage,
		URL:    url,
		Index:  index,
		Status: status,
		Dur:    elapsed,
	}
	if err != nil {
		evt.Note = err.Error()
	}
	c.emit(evt)

	return FetchResult{Index: index, URL: url, HTML: html, Err: err}
}

func (c *Coordinator) emit(evt progress.Event) {
	if c.hub != nil {
		c.hub.Emit(evt)
	}
}

func (c *Coordinator) now() time.Time {
	if c.clock != nil {
		return c.clock.Now()
	}
	return time.Now().UTC()
}
