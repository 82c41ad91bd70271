package scraper

import "go.uber.org/zap"

// Merge concatenates the three stage collections by position. It returns an
// *AlignmentError when the cardinalities differ; in that case no rows are
// produced and the caller must skip merged-table persistence (individual
// tables are unaffected by this invariant).
func Merge(links []CourseLink, details []CourseDetail, instructors []InstructorDetail, logger *zap.Logger) ([]MergedRow, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(links) != len(details) || len(details) != len(instructors) {
		return nil, &AlignmentError{
			Links:       len(links),
			Details:     len(details),
			Instructors: len(instructors),
		}
	}

	rows := make([]MergedRow, len(links))
	for i := range links {
		// Index-based join hardening: the canonical URL scraped from the
		// detail page should match the course link that produced it.
		if details[i].CourseURL != NotAvailable && details[i].CourseURL != links[i].URL {
			logger.Warn("merged row url mismatch",
				zap.Int("index", i),
				zap.String("link_url", links[i].URL),
				zap.String("detail_url", details[i].CourseURL),
			)
		}
		rows[i] = MergedRow{
			Link:       links[i],
			Detail:     details[i],
			Instructor: instructors[i],
		}
	}
	return rows, nil
}
