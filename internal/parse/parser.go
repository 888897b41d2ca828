package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dmfell/scholarscrape/internal/scholar"
)

// Profile listing selectors. Scholar renders each publication as a
// table row with a title anchor pointing at the citation detail view.
const (
	selProfileRow  = "tr.gsc_a_tr"
	selRowTitle    = "a.gsc_a_at"
	selRowGray     = "div.gs_gray"
	selRowCitedBy  = "a.gsc_a_ac"
	selRowYear     = "span.gsc_a_h"
	defaultCitedBy = "0"
)

// rowVenueHints gate the listing-page venue guess. The gray line under
// a title mixes authors and venue text, so only rows that plainly name
// a publication channel get a venue before the detail fetch fills it.
var rowVenueHints = []string{"journal", "conference", "proceedings", "transactions"}

// Parser turns Scholar HTML into publication records. The zero value
// is ready to use; it holds no state between calls.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseProfile extracts the publication table from a profile page.
// Rows without a title anchor are skipped. A page with no rows parses
// to an empty slice, which callers treat as a profile with no
// publications rather than an error.
func (p *Parser) ParseProfile(body []byte) ([]scholar.Publication, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse profile html: %w", err)
	}

	pubs := make([]scholar.Publication, 0)
	doc.Find(selProfileRow).Each(func(_ int, row *goquery.Selection) {
		title := row.Find(selRowTitle).First()
		if title.Length() == 0 {
			return
		}
		pub := scholar.Publication{
			Title:   text(title),
			CitedBy: defaultCitedBy,
			Year:    scholar.Placeholder,
			Venue:   scholar.Placeholder,
		}
		if href, ok := title.Attr("href"); ok && href != "" {
			pub.CitationURL = scholar.AbsoluteURL(href)
		}

		gray := row.Find(selRowGray)
		pub.Authors = splitAuthors(text(gray.First()))
		pub.Venue = rowVenue(gray)

		if cited := text(row.Find(selRowCitedBy).First()); cited != "" {
			pub.CitedBy = cited
		}
		if year := text(row.Find(selRowYear).First()); year != "" {
			pub.Year = year
		}
		pubs = append(pubs, pub)
	})
	return pubs, nil
}

// rowVenue guesses a venue from the gray lines of a listing row. The
// second gray line carries the venue when Scholar renders one; the
// first is the author list. Either way the guess only sticks when the
// text names a recognizable publication channel.
func rowVenue(gray *goquery.Selection) string {
	candidate := gray.First()
	if gray.Length() > 1 {
		candidate = gray.Eq(1)
	}
	line := strings.ToLower(text(candidate))
	for _, hint := range rowVenueHints {
		if strings.Contains(line, hint) {
			return text(candidate)
		}
	}
	return scholar.Placeholder
}

// text returns the trimmed text of a selection.
func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}
