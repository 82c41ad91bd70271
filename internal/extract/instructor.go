package extract

import (
	"fmt"

	"github.com/peterkacmarik/course-scraper/internal/scraper"
)

const (
	profileNameSelector   = `h1.ud-heading-serif-xxxl`
	profileSocialSelector = `div.instructor-profile--social-links--02JZE a[data-purpose="%s"]`
)

// InstructorPage extracts structured fields from an instructor profile page.
type InstructorPage struct{}

// NewInstructorPage creates an instructor-profile extractor.
func NewInstructorPage() *InstructorPage {
	return &InstructorPage{}
}

// ExtractInstructorDetail follows the same best-effort contract as the
// detail extractor: empty input or missing markup yields sentinel fields.
func (e *InstructorPage) ExtractInstructorDetail(html string) scraper.InstructorDetail {
	doc := parse(html)
	return scraper.InstructorDetail{
		InstructorName:    orNA(doc, text(profileNameSelector)),
		InstructorWebsite: orNA(doc, socialLink("personal-website-link")),
		Twitter:           orNA(doc, socialLink("twitter-link")),
		LinkedIn:          orNA(doc, socialLink("linkedin-link")),
		Facebook:          orNA(doc, socialLink("facebook-link")),
		YouTube:           orNA(doc, socialLink("youtube-link")),
		InstructorURL:     orNA(doc, attr(`meta[property="og:url"]`, "content")),
	}
}

func socialLink(purpose string) field {
	return attr(fmt.Sprintf(profileSocialSelector, purpose), "href")
}
