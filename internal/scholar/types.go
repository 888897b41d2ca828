package scholar

import (
	"errors"
	"fmt"
	"time"
)

// Placeholder marks a field whose value could not be extracted.
const Placeholder = "N/A"

// Tier identifies the fetch mechanism that handled a target.
type Tier string

// Fetch tiers in escalation order.
const (
	TierFast       Tier = "fast"
	TierHeavy      Tier = "heavy"
	TierSequential Tier = "sequential"
)

// Publication is one entry scraped from a profile listing, enriched in
// place once its citation page has been fetched and parsed.
type Publication struct {
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	CitedBy         string   `json:"cited_by"`
	Year            string   `json:"year"`
	Venue           string   `json:"venue"`
	CitationURL     string   `json:"citation_url"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Abstract        string   `json:"abstract,omitempty"`
	TotalCitations  string   `json:"total_citations,omitempty"`
	PDFLink         string   `json:"pdf_link,omitempty"`
}

// Detail holds the fields extracted from a publication's citation page.
type Detail struct {
	Title           string
	Authors         []string
	PublicationDate string
	Abstract        string
	TotalCitations  string
	Venue           string
	PDFLink         string
}

// Merge copies detail fields into the publication. A field already known
// from the profile listing is only replaced by a usable value, so a
// partial detail parse can never erase data with placeholders.
func (p *Publication) Merge(d Detail) {
	if usable(d.Title) {
		p.Title = d.Title
	}
	if usableAuthors(d.Authors) {
		p.Authors = d.Authors
	}
	if usable(d.PublicationDate) {
		p.PublicationDate = d.PublicationDate
	}
	if usable(d.Abstract) {
		p.Abstract = d.Abstract
	}
	if usable(d.TotalCitations) {
		p.TotalCitations = d.TotalCitations
	}
	if usable(d.Venue) {
		p.Venue = d.Venue
	}
	if usable(d.PDFLink) {
		p.PDFLink = d.PDFLink
	}
}

func usable(v string) bool {
	return v != "" && v != Placeholder
}

func usableAuthors(authors []string) bool {
	if len(authors) == 0 {
		return false
	}
	return len(authors) > 1 || usable(authors[0])
}

// Target pairs a publication index with the URL of its citation page.
type Target struct {
	Index int
	URL   string
}

// FetchResult reports the outcome of one target fetch.
type FetchResult struct {
	Index int
	Tier  Tier
	Err   error
}

// Page is the final state of a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// ErrExhausted reports that every attempt in the budget failed.
var ErrExhausted = errors.New("attempt budget exhausted")

// ErrNoResult reports that a fetch produced no usable content.
var ErrNoResult = errors.New("no usable result")

// BlockedError reports that the remote served an anti-bot interstitial
// instead of content.
type BlockedError struct {
	Kind BlockKind
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked: %s", e.Kind)
}

// IsBlocked reports whether err (or anything it wraps) is a BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// BlockKindOf extracts the block kind from err, or BlockNone when err
// carries no block verdict.
func BlockKindOf(err error) BlockKind {
	var be *BlockedError
	if errors.As(err, &be) {
		return be.Kind
	}
	return BlockNone
}
