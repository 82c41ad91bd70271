package scraper

import (
	"context"
	"time"
)

// Fetcher retrieves the rendered HTML of a single URL. Implementations must
// release any acquired browser/network resources on every exit path.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// SearchExtractor maps one search-result page to the course links it lists.
type SearchExtractor interface {
	ExtractCourseLinks(html string) ([]CourseLink, error)
}

// DetailExtractor maps one course detail page to a CourseDetail. It never
// fails: fields whose markup is absent come back as NotAvailable, and
// unparseable or empty input yields an all-NotAvailable record.
type DetailExtractor interface {
	ExtractCourseDetail(html string) CourseDetail
}

// InstructorExtractor maps one instructor profile page to an InstructorDetail
// under the same best-effort contract as DetailExtractor.
type InstructorExtractor interface {
	ExtractInstructorDetail(html string) InstructorDetail
}

// Store is the relational persistence capability. Inserts are append-only;
// corrections happen only through UpdateRows.
type Store interface {
	CreateTables(ctx context.Context) error
	InsertCourseLinks(ctx context.Context, runID string, links []CourseLink) error
	InsertCourseDetails(ctx context.Context, runID string, details []CourseDetail) error
	InsertInstructorDetails(ctx context.Context, runID string, details []InstructorDetail) error
	InsertMergedRows(ctx context.Context, runID string, rows []MergedRow) error

	// InsertCombined is the standalone normalized-persistence path: it
	// inserts fresh parent rows plus the foreign-key join row per index.
	// The pipeline does not call it; its stage-boundary inserts already
	// cover the parent tables.
	InsertCombined(ctx context.Context, runID string, links []CourseLink, details []CourseDetail, instructors []InstructorDetail) error

	// CourseLinksByURL returns persisted course links whose url column equals
	// the given value exactly (case-sensitive, no normalization).
	CourseLinksByURL(ctx context.Context, url string) ([]CourseLink, error)

	UpdateRows(ctx context.Context, kind TableKind, updates map[string]string) (int64, error)
	DeleteAllRows(ctx context.Context, kind TableKind) (int64, error)
	Close()
}

// Exporter writes flat-file snapshots of one run's datasets.
type Exporter interface {
	ExportCourseLinks(links []CourseLink, expression string, at time.Time) error
	ExportCourseDetails(details []CourseDetail, expression string, at time.Time) error
	ExportInstructorDetails(details []InstructorDetail, expression string, at time.Time) error
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}
