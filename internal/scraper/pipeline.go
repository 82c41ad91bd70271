package scraper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/peterkacmarik/course-scraper/internal/progress"
)

// Pipeline runs the three dependent fetch stages in sequence: search-result
// pages, course detail pages, instructor pages. Each stage is internally
// parallel through the Coordinator; there is no cross-stage parallelism
// because stage k+1's input URLs derive from stage k's extracted output.
type Pipeline struct {
	coordinator *Coordinator
	search      SearchExtractor
	detail      DetailExtractor
	instructor  InstructorExtractor
	novelty     *NoveltyFilter
	store       Store
	exporter    Exporter
	hub         *progress.Hub
	logger      *zap.Logger
	clock       Clock
}

// NewPipeline wires the pipeline from its collaborators.
func NewPipeline(
	coordinator *Coordinator,
	search SearchExtractor,
	detail DetailExtractor,
	instructor InstructorExtractor,
	novelty *NoveltyFilter,
	store Store,
	exporter Exporter,
	hub *progress.Hub,
	logger *zap.Logger,
	clock Clock,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		coordinator: coordinator,
		search:      search,
		detail:      detail,
		instructor:  instructor,
		novelty:     novelty,
		store:       store,
		exporter:    exporter,
		hub:         hub,
		logger:      logger,
		clock:       clock,
	}
}

// RunParams are the inputs of one pipeline run.
type RunParams struct {
	RunID      string
	SeedURLs   []string
	Expression string
}

// RunSummary reports what one run did.
type RunSummary struct {
	RunID      string
	Discovered int
	Novel      int
	Merged     int
	// Done is true when the novelty filter found nothing new and the run
	// stopped early. This is a successful outcome, not an error.
	Done bool
}

// Run executes one full scrape. Per-URL and per-field failures never abort
// the run; only store comparison failures and context cancellation propagate.
func (p *Pipeline) Run(ctx context.Context, params RunParams) (RunSummary, error) {
	summary := RunSummary{RunID: params.RunID}
	runStart := p.now()
	p.emit(progress.Event{RunID: params.RunID, TS: runStart, Kind: progress.KindRunStart})

	links, err := p.discoverCourseLinks(ctx, params)
	if err != nil {
		p.emitRunError(params.RunID, runStart, err)
		return summary, err
	}
	summary.Discovered = len(links)

	outcome, err := p.novelty.Filter(ctx, links)
	if err != nil {
		p.emitRunError(params.RunID, runStart, err)
		return summary, err
	}
	summary.Novel = len(outcome.Novel)
	if outcome.Done() {
		p.logger.Info("no new data to insert",
			zap.Int("checked", outcome.Checked),
			zap.Int("known", outcome.Known),
		)
		summary.Done = true
		p.emitRunDone(params.RunID, runStart)
		return summary, nil
	}

	// Course links are committed before the detail stage begins so that a
	// rerun after a mid-pipeline crash still treats them as known.
	if err := p.store.InsertCourseLinks(ctx, params.RunID, outcome.Novel); err != nil {
		p.logger.Error("insert course links failed", zap.Error(err))
	} else {
		p.logger.Info("data inserted into table course_links", zap.Int("rows", len(outcome.Novel)))
	}

	details := p.fetchCourseDetails(ctx, params.RunID, outcome.Novel)
	if err := p.store.InsertCourseDetails(ctx, params.RunID, details); err != nil {
		p.logger.Error("insert course details failed", zap.Error(err))
	} else {
		p.logger.Info("data inserted into table detail_course_links", zap.Int("rows", len(details)))
	}

	instructors := p.fetchInstructorDetails(ctx, params.RunID, details)
	if err := p.store.InsertInstructorDetails(ctx, params.RunID, instructors); err != nil {
		p.logger.Error("insert instructor details failed", zap.Error(err))
	} else {
		p.logger.Info("data inserted into table instructor_details", zap.Int("rows", len(instructors)))
	}

	summary.Merged = p.mergeAndPersist(ctx, params.RunID, outcome.Novel, details, instructors)

	p.export(params.Expression, outcome.Novel, details, instructors)

	p.logger.Info("total time for scraping", zap.Duration("elapsed", p.now().Sub(runStart)))
	p.emitRunDone(params.RunID, runStart)
	return summary, nil
}

// discoverCourseLinks is stage 1: fetch every seed search page and extract
// the course listings. A failed seed fetch contributes zero links; a page
// whose markup cannot be parsed is skipped the same way.
func (p *Pipeline) discoverCourseLinks(ctx context.Context, params RunParams) ([]CourseLink, error) {
	stageStart := p.stageStart(params.RunID, progress.StageSearchPages)

	results := p.coordinator.FetchAll(ctx, params.RunID, progress.StageSearchPages, params.SeedURLs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var links []CourseLink
	for _, result := range results {
		if result.Failed() {
			continue
		}
		pageLinks, err := p.search.ExtractCourseLinks(result.HTML)
		if err != nil {
			p.logger.Warn("search page extraction failed",
				zap.String("url", result.URL),
				zap.Error(err),
			)
			continue
		}
		links = append(links, pageLinks...)
	}

	p.stageDone(params.RunID, progress.StageSearchPages, stageStart, len(links))
	return links, nil
}

// fetchCourseDetails is stage 2. Output length always equals input length:
// a failed fetch occupies its slot and extracts to an all-sentinel record,
// preserving the positional invariant required by the merge.
func (p *Pipeline) fetchCourseDetails(ctx context.Context, runID string, links []CourseLink) []CourseDetail {
	stageStart := p.stageStart(runID, progress.StageCourseDetails)

	urls := make([]string, len(links))
	for i, link := range links {
		urls[i] = link.URL
	}
	results := p.coordinator.FetchAll(ctx, runID, progress.StageCourseDetails, urls)

	details := make([]CourseDetail, len(results))
	for i, result := range results {
		details[i] = p.detail.ExtractCourseDetail(result.HTML)
	}

	p.stageDone(runID, progress.StageCourseDetails, stageStart, len(details))
	return details
}

// fetchInstructorDetails is stage 3, driven by the instructor URLs of stage
// 2's output in the same order. Sentinel URLs fail to fetch and pad their
// slot with an all-sentinel record.
func (p *Pipeline) fetchInstructorDetails(ctx context.Context, runID string, details []CourseDetail) []InstructorDetail {
	stageStart := p.stageStart(runID, progress.StageInstructorPages)

	urls := make([]string, len(details))
	for i, detail := range details {
		urls[i] = detail.InstructorURL
	}
	results := p.coordinator.FetchAll(ctx, runID, progress.StageInstructorPages, urls)

	instructors := make([]InstructorDetail, len(results))
	for i, result := range results {
		instructors[i] = p.instructor.ExtractInstructorDetail(result.HTML)
	}

	p.stageDone(runID, progress.StageInstructorPages, stageStart, len(instructors))
	return instructors
}

// mergeAndPersist enforces the alignment invariant, then writes the merged
// wide table. An alignment mismatch skips it and leaves the individual
// tables untouched. The foreign-key join table is not written here: the
// stage rows are already persisted at the stage boundaries above, and the
// combined-insert path creates its own parent rows, so invoking it in the
// run path would store every record twice.
func (p *Pipeline) mergeAndPersist(ctx context.Context, runID string, links []CourseLink, details []CourseDetail, instructors []InstructorDetail) int {
	rows, err := Merge(links, details, instructors, p.logger)
	if err != nil {
		var alignment *AlignmentError
		if errors.As(err, &alignment) {
			p.logger.Error("stage outputs misaligned, skipping merge",
				zap.Int("course_links", alignment.Links),
				zap.Int("detail_course_links", alignment.Details),
				zap.Int("instructor_details", alignment.Instructors),
			)
		} else {
			p.logger.Error("merge failed", zap.Error(err))
		}
		return 0
	}

	if err := p.store.InsertMergedRows(ctx, runID, rows); err != nil {
		p.logger.Error("insert merged rows failed", zap.Error(err))
	} else {
		p.logger.Info("data inserted into table merge_data", zap.Int("rows", len(rows)))
	}
	return len(rows)
}

// export writes the three snapshot pairs. Exports are independent of merge
// success and of each other; failures are logged and do not stop the run.
func (p *Pipeline) export(expression string, links []CourseLink, details []CourseDetail, instructors []InstructorDetail) {
	if p.exporter == nil {
		return
	}
	// Prefer the expression scraped off the page over the configured one.
	if len(links) > 0 && links[0].WantedExpression != NotAvailable && links[0].WantedExpression != "" {
		expression = links[0].WantedExpression
	}
	at := p.now()
	if err := p.exporter.ExportCourseLinks(links, expression, at); err != nil {
		p.logger.Error("export course links failed", zap.Error(err))
	}
	if err := p.exporter.ExportCourseDetails(details, expression, at); err != nil {
		p.logger.Error("export course details failed", zap.Error(err))
	}
	if err := p.exporter.ExportInstructorDetails(instructors, expression, at); err != nil {
		p.logger.Error("export instructor details failed", zap.Error(err))
	}
}

func (p *Pipeline) stageStart(runID string, stage progress.Stage) time.Time {
	start := p.now()
	p.logger.Info("stage started", zap.String("stage", string(stage)))
	p.emit(progress.Event{RunID: runID, TS: start, Kind: progress.KindStageStart, Stage: stage})
	return start
}

func (p *Pipeline) stageDone(runID string, stage progress.Stage, start time.Time, count int) {
	elapsed := p.now().Sub(start)
	p.logger.Info("stage completed",
		zap.String("stage", string(stage)),
		zap.Int("records", count),
		zap.Duration("elapsed", elapsed),
	)
	p.emit(progress.Event{
		RunID: runID,
		TS:    p.now(),
		Kind:  progress.KindStageDone,
		Stage: stage,
		Count: count,
		Dur:   elapsed,
	})
}

func (p *Pipeline) emitRunDone(runID string, start time.Time) {
	p.emit(progress.Event{
		RunID: runID,
		TS:    p.now(),
		Kind:  progress.KindRunDone,
		Dur:   p.now().Sub(start),
	})
}

func (p *Pipeline) emitRunError(runID string, start time.Time, err error) {
	p.emit(progress.Event{
		RunID: runID,
		TS:    p.now(),
		Kind:  progress.KindRunError,
		Dur:   p.now().Sub(start),
		Note:  err.Error(),
	})
}

func (p *Pipeline) emit(evt progress.Event) {
	if p.hub != nil {
		p.hub.Emit(evt)
	}
}

func (p *Pipeline) now() time.Time {
	if p.clock != nil {
		return p.clock.Now()
	}
	return time.Now().UTC()
}
