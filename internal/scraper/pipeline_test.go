package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://example.test"

// mapFetcher serves canned pages. URLs without an entry fail, which is how
// sentinel instructor URLs behave in a real run.
type mapFetcher struct {
	pages map[string]string
}

func (f *mapFetcher) Fetch(_ context.Context, url string) (string, error) {
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return html, nil
}

// The stub extractors read a tiny line format instead of real markup so the
// test exercises pipeline sequencing, not selector logic.
type stubSearch struct{}

func (stubSearch) ExtractCourseLinks(html string) ([]CourseLink, error) {
	var links []CourseLink
	for _, line := range strings.Split(html, "\n") {
		slug, ok := strings.CutPrefix(line, "course:")
		if !ok {
			continue
		}
		links = append(links, CourseLink{
			URL:              testBase + "/course/" + slug + "/",
			WantedExpression: "golang",
		})
	}
	if links == nil {
		return nil, errors.New("no listings")
	}
	return links, nil
}

type stubDetail struct{}

func (stubDetail) ExtractCourseDetail(html string) CourseDetail {
	if html == "" {
		return CourseDetail{
			CourseTitle: NotAvailable, CourseURL: NotAvailable,
			InstructorName: NotAvailable, InstructorURL: NotAvailable,
		}
	}
	var d CourseDetail
	for _, line := range strings.Split(html, "\n") {
		if v, ok := strings.CutPrefix(line, "title:"); ok {
			d.CourseTitle = v
		}
		if v, ok := strings.CutPrefix(line, "url:"); ok {
			d.CourseURL = v
		}
		if v, ok := strings.CutPrefix(line, "instructor:"); ok {
			d.InstructorURL = testBase + "/user/" + v + "/"
			d.InstructorName = v
		}
	}
	return d
}

type stubInstructor struct{}

func (stubInstructor) ExtractInstructorDetail(html string) InstructorDetail {
	if html == "" {
		return InstructorDetail{
			InstructorName: NotAvailable, InstructorURL: NotAvailable,
		}
	}
	name, _ := strings.CutPrefix(strings.TrimSpace(html), "profile:")
	return InstructorDetail{InstructorName: name, InstructorURL: testBase + "/user/" + name + "/"}
}

func coursePage(slug, instructor string) string {
	return fmt.Sprintf("title:%s\nurl:%s/course/%s/\ninstructor:%s", strings.ToUpper(slug), testBase, slug, instructor)
}

func newTestPipeline(fetcher Fetcher, store Store, exporter Exporter) *Pipeline {
	coordinator := NewCoordinator(fetcher, 2, nil, nil, nil)
	novelty := NewNoveltyFilter(store, nil)
	return NewPipeline(coordinator, stubSearch{}, stubDetail{}, stubInstructor{}, novelty, store, exporter, nil, nil, nil)
}

func TestPipelineRunEndToEnd(t *testing.T) {
	t.Parallel()

	seed := testBase + "/courses/search/?p=1&q=golang&src=ukw"
	fetcher := &mapFetcher{pages: map[string]string{
		seed: "course:go-basics\ncourse:go-advanced\ncourse:go-web",

		testBase + "/course/go-basics/":   coursePage("go-basics", "alice"),
		testBase + "/course/go-advanced/": coursePage("go-advanced", "bob"),
		testBase + "/course/go-web/":      coursePage("go-web", "alice"),

		testBase + "/user/alice/": "profile:alice",
		testBase + "/user/bob/":   "profile:bob",
	}}
	store := newStubStore()
	exporter := &stubExporter{}

	p := newTestPipeline(fetcher, store, exporter)
	summary, err := p.Run(context.Background(), RunParams{
		RunID:      "run-1",
		SeedURLs:   []string{seed},
		Expression: "golang",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 3, summary.Novel)
	assert.Equal(t, 3, summary.Merged)
	assert.False(t, summary.Done)

	require.Len(t, store.insertedLinks, 3)
	require.Len(t, store.insertedDetails, 3)
	require.Len(t, store.insertedInstructors, 3)
	require.Len(t, store.insertedMerged, 3)

	assert.Equal(t, "GO-BASICS", store.insertedMerged[0].Detail.CourseTitle)
	assert.Equal(t, "alice", store.insertedMerged[0].Instructor.InstructorName)
	assert.Equal(t, "bob", store.insertedMerged[1].Instructor.InstructorName)

	// Three datasets exported, all under the scraped expression.
	assert.Equal(t, 3, exporter.calls)
	for _, expr := range exporter.expressions {
		assert.Equal(t, "golang", expr)
	}
}

func TestPipelinePersistsEachRecordExactlyOnce(t *testing.T) {
	t.Parallel()

	seed := testBase + "/courses/search/?p=1&q=golang&src=ukw"
	fetcher := &mapFetcher{pages: map[string]string{
		seed: "course:go-basics\ncourse:go-web",

		testBase + "/course/go-basics/": coursePage("go-basics", "alice"),
		testBase + "/course/go-web/":    coursePage("go-web", "bob"),

		testBase + "/user/alice/": "profile:alice",
		testBase + "/user/bob/":   "profile:bob",
	}}
	store := newStubStore()

	p := newTestPipeline(fetcher, store, &stubExporter{})
	summary, err := p.Run(context.Background(), RunParams{
		RunID:      "run-once",
		SeedURLs:   []string{seed},
		Expression: "golang",
	})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Novel)

	// The combined-insert path creates its own parent rows, so the run path
	// must not invoke it on top of the stage-boundary inserts: each novel
	// course lands exactly once per table.
	assert.Len(t, store.insertedLinks, 2, "course_links rows")
	assert.Len(t, store.insertedDetails, 2, "detail_course_links rows")
	assert.Len(t, store.insertedInstructors, 2, "instructor_details rows")
	assert.Len(t, store.insertedMerged, 2, "merge_data rows")
	assert.Zero(t, store.combinedCalls)
}

func TestPipelineStopsEarlyWhenNothingNovel(t *testing.T) {
	t.Parallel()

	seed := testBase + "/courses/search/?p=1&q=golang&src=ukw"
	fetcher := &mapFetcher{pages: map[string]string{
		seed: "course:go-basics",
	}}
	store := newStubStore(testBase + "/course/go-basics/")
	exporter := &stubExporter{}

	p := newTestPipeline(fetcher, store, exporter)
	summary, err := p.Run(context.Background(), RunParams{
		RunID:      "run-2",
		SeedURLs:   []string{seed},
		Expression: "golang",
	})
	require.NoError(t, err)

	assert.True(t, summary.Done)
	assert.Equal(t, 1, summary.Discovered)
	assert.Zero(t, summary.Novel)
	assert.Empty(t, store.insertedLinks)
	assert.Empty(t, store.insertedDetails)
	assert.Zero(t, exporter.calls, "early stop must not export")
}

func TestPipelinePadsFailedDetailFetches(t *testing.T) {
	t.Parallel()

	seed := testBase + "/courses/search/?p=1&q=golang&src=ukw"
	fetcher := &mapFetcher{pages: map[string]string{
		seed: "course:go-basics\ncourse:gone-missing\ncourse:go-web",

		testBase + "/course/go-basics/": coursePage("go-basics", "alice"),
		// gone-missing has no page entry so its fetch fails.
		testBase + "/course/go-web/": coursePage("go-web", "bob"),

		testBase + "/user/alice/": "profile:alice",
		testBase + "/user/bob/":   "profile:bob",
	}}
	store := newStubStore()

	p := newTestPipeline(fetcher, store, &stubExporter{})
	summary, err := p.Run(context.Background(), RunParams{
		RunID:      "run-3",
		SeedURLs:   []string{seed},
		Expression: "golang",
	})
	require.NoError(t, err)

	// The failed slot pads with sentinels instead of shrinking the stage
	// output, so the merge still sees three aligned records.
	assert.Equal(t, 3, summary.Merged)
	require.Len(t, store.insertedDetails, 3)
	assert.Equal(t, NotAvailable, store.insertedDetails[1].CourseTitle)
	require.Len(t, store.insertedInstructors, 3)
	assert.Equal(t, NotAvailable, store.insertedInstructors[1].InstructorName)
	assert.Equal(t, "bob", store.insertedInstructors[2].InstructorName)
}

func TestPipelineFailedSeedContributesNothing(t *testing.T) {
	t.Parallel()

	goodSeed := testBase + "/courses/search/?p=1&q=golang&src=ukw"
	badSeed := testBase + "/courses/search/?p=2&q=golang&src=ukw"
	fetcher := &mapFetcher{pages: map[string]string{
		goodSeed: "course:go-basics",

		testBase + "/course/go-basics/": coursePage("go-basics", "alice"),
		testBase + "/user/alice/":       "profile:alice",
	}}
	store := newStubStore()

	p := newTestPipeline(fetcher, store, &stubExporter{})
	summary, err := p.Run(context.Background(), RunParams{
		RunID:      "run-4",
		SeedURLs:   []string{goodSeed, badSeed},
		Expression: "golang",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Discovered)
	assert.Equal(t, 1, summary.Merged)
}

func TestPipelinePropagatesNoveltyStoreError(t *testing.T) {
	t.Parallel()

	seed := testBase + "/courses/search/?p=1&q=golang&src=ukw"
	fetcher := &mapFetcher{pages: map[string]string{
		seed: "course:go-basics",
	}}
	store := newStubStore()
	store.queryErr = errors.New("database unavailable")

	p := newTestPipeline(fetcher, store, &stubExporter{})
	_, err := p.Run(context.Background(), RunParams{
		RunID:      "run-5",
		SeedURLs:   []string{seed},
		Expression: "golang",
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "database unavailable")
}

func TestPipelineContinuesWhenLinkInsertFails(t *testing.T) {
	t.Parallel()

	seed := testBase + "/courses/search/?p=1&q=golang&src=ukw"
	fetcher := &mapFetcher{pages: map[string]string{
		seed: "course:go-basics",

		testBase + "/course/go-basics/": coursePage("go-basics", "alice"),
		testBase + "/user/alice/":       "profile:alice",
	}}
	store := newStubStore()
	store.linkInsertErr = errors.New("disk full")

	p := newTestPipeline(fetcher, store, &stubExporter{})
	summary, err := p.Run(context.Background(), RunParams{
		RunID:      "run-6",
		SeedURLs:   []string{seed},
		Expression: "golang",
	})
	require.NoError(t, err, "persistence failure must not abort the run")
	assert.Equal(t, 1, summary.Merged)
	require.Len(t, store.insertedDetails, 1)
}
