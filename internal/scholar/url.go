package scholar

import (
	"fmt"
	"net/url"
	"strings"
)

const scholarHost = "https://scholar.google.com"

// ProfileURL builds the citations page URL for a Scholar user ID.
func ProfileURL(userID string) string {
	return fmt.Sprintf("%s/citations?user=%s&hl=en", scholarHost, url.QueryEscape(userID))
}

// AbsoluteURL resolves a relative citation href against the Scholar host.
// Absolute URLs pass through unchanged.
func AbsoluteURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return scholarHost + href
}
