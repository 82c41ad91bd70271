// Package extract maps rendered marketplace HTML to structured records.
// Every field is extracted independently and best-effort: absent markup
// yields the scraper.NotAvailable sentinel, never a record failure.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/peterkacmarik/course-scraper/internal/scraper"
)

// field looks up one value in a document. The bool reports whether the
// expected markup was present.
type field func(doc *goquery.Document) (string, bool)

// orNA resolves a field against the document, substituting the sentinel when
// the markup is absent.
func orNA(doc *goquery.Document, f field) string {
	if doc == nil {
		return scraper.NotAvailable
	}
	v, ok := f(doc)
	if !ok {
		return scraper.NotAvailable
	}
	return v
}

// text extracts the trimmed text of the first node matching selector.
func text(selector string) field {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		return strings.TrimSpace(sel.Text()), true
	}
}

// attr extracts an attribute of the first node matching selector.
func attr(selector, name string) field {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		v, ok := sel.Attr(name)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
}

// nthText extracts the trimmed text of the n-th node matching selector.
func nthText(selector string, n int) field {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(selector).Eq(n)
		if sel.Length() == 0 {
			return "", false
		}
		return strings.TrimSpace(sel.Text()), true
	}
}

// parse builds a document from raw HTML. A nil document stands for
// unparseable or empty input and resolves every field to the sentinel.
func parse(html string) *goquery.Document {
	if html == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return doc
}
