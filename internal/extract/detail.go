package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/peterkacmarik/course-scraper/internal/scraper"
)

// Selectors for the course landing page. The instructor stats live in a
// block list under the instructor image; their order is ratings, reviews,
// students, courses.
const (
	detailTitleSelector      = `h1.ud-heading-xl.clp-lead__title.clp-lead__title--small`
	detailSubtitleSelector   = `div.ud-text-md.clp-lead__headline`
	detailEnrollmentSelector = `div.enrollment`
	detailRatingSelector     = `span.ud-sr-only`
	detailCreatedBySelector  = `a.ud-btn.ud-btn-large.ud-btn-link.ud-heading-md.ud-text-sm.ud-instructor-links`
	detailLastUpdateSelector = `div.last-update-date`
	detailCanonicalSelector  = `meta[property="og:url"]`
	instructorTitleSelector  = `div.ud-heading-lg.ud-link-underline.instructor--instructor__title--S9oZ4`
	instructorStatsSelector  = `div.instructor--instructor__image-and-stats--6Nbsa div.ud-block-list-item-content`
)

// DetailPage extracts structured fields from a course detail page.
type DetailPage struct {
	baseURL string
}

// NewDetailPage creates a course-detail extractor.
func NewDetailPage(baseURL string) *DetailPage {
	return &DetailPage{baseURL: strings.TrimRight(baseURL, "/")}
}

// ExtractCourseDetail never fails: a fetch-failure slot (empty HTML) or any
// missing field resolves to the sentinel, keeping the row in its position.
func (e *DetailPage) ExtractCourseDetail(html string) scraper.CourseDetail {
	doc := parse(html)
	return scraper.CourseDetail{
		CourseTitle:        orNA(doc, text(detailTitleSelector)),
		CourseSubtitle:     orNA(doc, text(detailSubtitleSelector)),
		CourseNumStudents:  orNA(doc, text(detailEnrollmentSelector)),
		CourseRating:       orNA(doc, text(detailRatingSelector)),
		CourseCreatedBy:    orNA(doc, text(detailCreatedBySelector)),
		CourseLastUpdated:  orNA(doc, text(detailLastUpdateSelector)),
		CourseURL:          orNA(doc, attr(detailCanonicalSelector, "content")),
		InstructorName:     orNA(doc, text(instructorTitleSelector)),
		InstructorRatings:  orNA(doc, nthText(instructorStatsSelector, 0)),
		InstructorReviews:  orNA(doc, nthText(instructorStatsSelector, 1)),
		InstructorStudents: orNA(doc, nthText(instructorStatsSelector, 2)),
		InstructorCourses:  orNA(doc, nthText(instructorStatsSelector, 3)),
		InstructorURL:      orNA(doc, e.instructorURL),
	}
}

// instructorURL resolves the relative profile link under the instructor
// heading against the marketplace origin.
func (e *DetailPage) instructorURL(doc *goquery.Document) (string, bool) {
	href, ok := doc.Find(instructorTitleSelector).First().Find("a").First().Attr("href")
	if !ok {
		return "", false
	}
	return e.baseURL + strings.TrimSpace(href), true
}
