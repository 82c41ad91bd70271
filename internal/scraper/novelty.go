package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NoveltyOutcome is the typed result of the novelty filter. An empty Novel
// slice is a normal, successful outcome meaning the run has nothing to do.
type NoveltyOutcome struct {
	// Novel holds the candidates not yet persisted, in input order.
	Novel []CourseLink
	// Checked is the number of candidates compared.
	Checked int
	// Known is the number of candidates already in the store.
	Known int
}

// Done reports whether the run can stop because nothing new was found.
func (o NoveltyOutcome) Done() bool {
	return len(o.Novel) == 0
}

// NoveltyFilter compares discovered course links against the persisted
// course-link table. Matching is exact-string and case-sensitive.
type NoveltyFilter struct {
	store  Store
	logger *zap.Logger
}

// NewNoveltyFilter builds a filter over the given store.
func NewNoveltyFilter(store Store, logger *zap.Logger) *NoveltyFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoveltyFilter{store: store, logger: logger}
}

// Filter returns the ordered subsequence of candidates whose URL has no exact
// match in the store. Store errors propagate: a failed comparison must not be
// mistaken for novelty.
func (f *NoveltyFilter) Filter(ctx context.Context, candidates []CourseLink) (NoveltyOutcome, error) {
	outcome := NoveltyOutcome{Checked: len(candidates)}
	for _, candidate := range candidates {
		existing, err := f.store.CourseLinksByURL(ctx, candidate.URL)
		if err != nil {
			return NoveltyOutcome{}, fmt.Errorf("compare url %q with store: %w", candidate.URL, err)
		}
		if len(existing) > 0 {
			outcome.Known++
			f.logger.Debug("skipping known url", zap.String("url", candidate.URL))
			continue
		}
		f.logger.Info("new url found", zap.String("url", candidate.URL))
		outcome.Novel = append(outcome.Novel, candidate)
	}
	return outcome, nil
}
