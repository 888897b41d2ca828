package parse

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dmfell/scholarscrape/internal/scholar"
)

// Citation detail selectors. The detail view lays out metadata as
// field/value pairs inside gs_scl sections.
const (
	selDetailTitle = "div#gsc_oci_title"
	selDetailRow   = "div.gs_scl"
	selDetailField = "div.gsc_oci_field"
	selDetailValue = "div.gsc_oci_value"
	selDetailPDF   = "div#gsc_oci_title_gg"
)

// Field labels Scholar uses on the detail page, lowercased for
// comparison.
const (
	fieldAuthors     = "authors"
	fieldPubDate     = "publication date"
	fieldDescription = "description"
	fieldCitations   = "total citations"
)

// venueFieldNames are detail field labels that name the venue outright.
var venueFieldNames = []string{"journal", "conference", "publisher", "source", "venue"}

// venueValueHints identify a venue by its value when no labeled field
// exists, e.g. a "Book" field whose value reads "IEEE Transactions on ...".
var venueValueHints = []string{"journal", "conference", "proceedings", "transactions", "letters", "review"}

// ParseDetail extracts the metadata pairs from a citation detail page.
// The second return is false when the page carries nothing usable,
// which the orchestrator counts as a failed enrichment.
func (p *Parser) ParseDetail(body []byte) (scholar.Detail, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scholar.Detail{}, false
	}

	d := scholar.Detail{
		Title:          scholar.Placeholder,
		TotalCitations: scholar.Placeholder,
		Venue:          scholar.Placeholder,
		PDFLink:        scholar.Placeholder,
	}
	if title := text(doc.Find(selDetailTitle).First()); title != "" {
		d.Title = title
	}

	doc.Find(selDetailRow).Each(func(_ int, row *goquery.Selection) {
		name := strings.ToLower(text(row.Find(selDetailField).First()))
		value := text(row.Find(selDetailValue).First())
		switch name {
		case fieldAuthors:
			d.Authors = splitAuthors(value)
		case fieldPubDate:
			d.PublicationDate = value
		case fieldDescription:
			d.Abstract = value
		case fieldCitations:
			if cited := text(row.Find("a").First()); cited != "" {
				d.TotalCitations = cited
			}
		}
	})

	d.Venue = detailVenue(doc)
	if href, ok := doc.Find(selDetailPDF).Find("a").First().Attr("href"); ok && href != "" {
		d.PDFLink = href
	}

	if !usableDetail(d) {
		return scholar.Detail{}, false
	}
	return d, true
}

// detailVenue resolves the venue in two passes. First it looks for a
// field whose label names a venue kind directly, trying labels in
// priority order. Failing that it scans the remaining unhandled fields
// for a value that reads like one.
func detailVenue(doc *goquery.Document) string {
	for _, name := range venueFieldNames {
		found := ""
		doc.Find(selDetailField).EachWithBreak(func(_ int, field *goquery.Selection) bool {
			if !strings.Contains(strings.ToLower(text(field)), name) {
				return true
			}
			if value := text(field.NextAllFiltered(selDetailValue).First()); value != "" {
				found = value
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	venue := scholar.Placeholder
	doc.Find(selDetailRow).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		name := strings.ToLower(text(row.Find(selDetailField).First()))
		switch name {
		case fieldAuthors, fieldPubDate, fieldDescription, fieldCitations:
			return true
		}
		value := text(row.Find(selDetailValue).First())
		lower := strings.ToLower(value)
		for _, hint := range venueValueHints {
			if strings.Contains(lower, hint) {
				venue = value
				return false
			}
		}
		return true
	})
	return venue
}

// usableDetail reports whether the parse produced anything beyond
// placeholders. A blocked or interstitial page parses cleanly but
// yields an all-placeholder detail, which must not count as a result.
func usableDetail(d scholar.Detail) bool {
	if d.Title != scholar.Placeholder && d.Title != "" {
		return true
	}
	if len(d.Authors) > 0 || d.PublicationDate != "" || d.Abstract != "" {
		return true
	}
	if d.TotalCitations != scholar.Placeholder {
		return true
	}
	if d.Venue != scholar.Placeholder || d.PDFLink != scholar.Placeholder {
		return true
	}
	return false
}
