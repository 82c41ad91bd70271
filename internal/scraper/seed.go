package scraper

import (
	"fmt"
	"strings"
)

// SeedURLs builds one search-result URL per page in [startPage, endPage].
// Multi-word expressions join words with "+" and use the suggestion-click
// URL shape; single words use the keyword shape.
func SeedURLs(baseURL, expression string, startPage, endPage int) []string {
	base := strings.TrimRight(baseURL, "/")
	var urls []string
	if strings.Contains(expression, " ") {
		wanted := strings.ReplaceAll(expression, " ", "+")
		for page := startPage; page <= endPage; page++ {
			urls = append(urls, fmt.Sprintf(
				"%s/courses/search/?kw=%s&p=%d&q=%s&src=sac", base, wanted, page, wanted,
			))
		}
		return urls
	}
	for page := startPage; page <= endPage; page++ {
		urls = append(urls, fmt.Sprintf(
			"%s/courses/search/?p=%d&q=%s&src=ukw", base, page, expression,
		))
	}
	return urls
}
