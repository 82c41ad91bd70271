package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/peterkacmarik/course-scraper/internal/scraper"
)

// The search heading quotes the expression between curly quotes, e.g.
// `1,234 results for “chatgpt”`.
var expressionPattern = regexp.MustCompile(`“([^”]*)”`)

const (
	courseTitleSelector   = `h3[data-purpose="course-title-url"]`
	searchHeadingSelector = `h1.ud-heading-xl.search--header-title--dNQ1f`
	coursePathPrefix      = "/course/"
)

// SearchPage extracts course links from a search-result page.
type SearchPage struct {
	baseURL string
}

// NewSearchPage creates a search-result extractor. Relative course paths are
// resolved against baseURL.
func NewSearchPage(baseURL string) *SearchPage {
	return &SearchPage{baseURL: strings.TrimRight(baseURL, "/")}
}

// ExtractCourseLinks returns one CourseLink per course listing, in document
// order. The searched expression is recovered from the page heading; when the
// heading is absent every link carries the sentinel expression.
func (e *SearchPage) ExtractCourseLinks(html string) ([]scraper.CourseLink, error) {
	doc := parse(html)
	if doc == nil {
		return nil, fmt.Errorf("unparseable search page")
	}

	expression := e.headingExpression(doc)

	var links []scraper.CourseLink
	doc.Find(courseTitleSelector).Each(func(_ int, title *goquery.Selection) {
		href, ok := title.Find("a").First().Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(href, coursePathPrefix) {
			return
		}
		links = append(links, scraper.CourseLink{
			URL:              e.baseURL + href,
			WantedExpression: expression,
		})
	})
	return links, nil
}

func (e *SearchPage) headingExpression(doc *goquery.Document) string {
	heading, ok := text(searchHeadingSelector)(doc)
	if !ok {
		return scraper.NotAvailable
	}
	m := expressionPattern.FindStringSubmatch(heading)
	if m == nil {
		return scraper.NotAvailable
	}
	return m[1]
}
