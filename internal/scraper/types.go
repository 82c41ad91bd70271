// Package scraper defines the core types and pipeline for the course
// marketplace scrape: a bounded concurrent fetch over three dependent page
// stages, novelty filtering against the store, and a positional merge.
package scraper

import "fmt"

// NotAvailable is the sentinel written for any field whose markup is absent.
// It is visible verbatim in exported files and persisted rows.
const NotAvailable = "N/A"

// CourseLink is one course discovered on a search-result page.
type CourseLink struct {
	URL              string
	WantedExpression string
}

// CourseDetail holds the fields scraped from one course detail page. Every
// field is independently optional; missing markup yields NotAvailable.
type CourseDetail struct {
	CourseTitle        string
	CourseSubtitle     string
	CourseNumStudents  string
	CourseRating       string
	CourseCreatedBy    string
	CourseLastUpdated  string
	CourseURL          string
	InstructorName     string
	InstructorRatings  string
	InstructorReviews  string
	InstructorStudents string
	InstructorCourses  string
	InstructorURL      string
}

// InstructorDetail holds the fields scraped from one instructor profile page.
type InstructorDetail struct {
	InstructorName    string
	InstructorWebsite string
	Twitter           string
	LinkedIn          string
	Facebook          string
	YouTube           string
	InstructorURL     string
}

// MergedRow is the positional concatenation of one record from each stage.
type MergedRow struct {
	Link       CourseLink
	Detail     CourseDetail
	Instructor InstructorDetail
}

// FetchResult is one slot of a bounded-fetch batch. A failed fetch keeps its
// slot (HTML empty, Err set) so output length always equals input length.
type FetchResult struct {
	Index int
	URL   string
	HTML  string
	Err   error
}

// Failed reports whether the slot represents a fetch failure.
func (r FetchResult) Failed() bool {
	return r.Err != nil || r.HTML == ""
}

// TableKind names one of the persisted tables.
type TableKind string

// Persisted tables, matching the relational schema.
const (
	TableCourseLinks       TableKind = "course_links"
	TableCourseDetails     TableKind = "detail_course_links"
	TableInstructorDetails TableKind = "instructor_details"
	TableMergedRows        TableKind = "merge_data"
	TableCombined          TableKind = "combined_data"
)

// AlignmentError reports that the three stage collections cannot be merged
// positionally because their cardinalities differ.
type AlignmentError struct {
	Links       int
	Details     int
	Instructors int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf(
		"stage outputs are not aligned: course_links=%d detail_course_links=%d instructor_details=%d",
		e.Links, e.Details, e.Instructors,
	)
}
