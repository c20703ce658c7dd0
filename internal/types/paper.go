// Package types holds the records shared between the search, digest,
// storage and mail layers.
package types

import "time"

// Paper is a single search hit. Identity is ID alone.
type Paper struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	Abstract        string    `json:"abstract" yaml:"abstract"`
	Authors         []string  `json:"authors" yaml:"authors"`
	Published       time.Time `json:"published" yaml:"published"`
	URL             string    `json:"url" yaml:"url"`
	PDFURL          string    `json:"pdf_url" yaml:"pdf_url"`
	Categories      []string  `json:"categories" yaml:"categories"`
	Summary         string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	KeywordsMatched []string  `json:"keywords_matched,omitempty" yaml:"keywords_matched,omitempty"`
}

// MatchesAny reports whether the paper was found by at least one of keywords.
func (p Paper) MatchesAny(keywords []string) bool {
	for _, m := range p.KeywordsMatched {
		for _, k := range keywords {
			if m == k {
				return true
			}
		}
	}
	return false
}

// PublishedDate returns the YYYY-MM-DD form of Published.
func (p Paper) PublishedDate() string {
	if p.Published.IsZero() {
		return ""
	}
	return p.Published.UTC().Format("2006-01-02")
}
