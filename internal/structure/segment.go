package structure

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Segmentation thresholds.
const (
	// MaxHeaderLen is the exclusive upper bound, in characters, on raw block length for a
	// block to be treated as a section header.
	MaxHeaderLen = 50
	// MinBodyLen is the exclusive lower bound, in characters, on trimmed block length for a
	// block to be appended to the open section.
	MinBodyLen = 20
	// WordsPerMinute drives the reading time estimate.
	WordsPerMinute = 200
)

// headerNames are tried in order. Each is anchored to the whole trimmed
// block and may carry a leading numeric label such as "3." or "2 ".
var headerNames = []string{
	`abstract`,
	`introduction`,
	`related\s+work`,
	`background`,
	`methodology`,
	`method`,
	`approach`,
	`experiments?`,
	`evaluation`,
	`results?`,
	`discussion`,
	`conclusions?`,
	`future\s+work`,
	`references?`,
	`acknowledgments?`,
}

var headerPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(headerNames))
	for i, name := range headerNames {
		out[i] = regexp.MustCompile(`(?i)^(\d+\.?\s+)?` + name + `\s*$`)
	}
	return out
}()

var titleCaser = cases.Title(language.Und)

// isHeader reports whether a block's text is a section header. raw is the
// untrimmed block text, trimmed its whitespace-trimmed form.
func isHeader(raw, trimmed string) bool {
	if utf8.RuneCountInString(raw) >= MaxHeaderLen {
		return false
	}
	for _, re := range headerPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// Segment partitions pages into sections delimited by header blocks.
// Content before the first header is discarded. A document without any
// header yields no sections.
func Segment(pages []Page) []Section {
	sections := []Section{}
	var current *Section

	closeCurrent := func() {
		if current == nil {
			return
		}
		current.ReadingTimeMinutes = ReadingTime(current.Content)
		sections = append(sections, *current)
		current = nil
	}

	for _, page := range pages {
		for _, block := range page.Blocks {
			text := strings.TrimSpace(block.Text)
			if isHeader(block.Text, text) {
				closeCurrent()
				current = &Section{
					Title:     titleCaser.String(text),
					StartPage: page.Number,
				}
				continue
			}
			if current != nil && utf8.RuneCountInString(text) > MinBodyLen {
				current.Content += " " + text
			}
		}
	}
	closeCurrent()

	return sections
}

// ReadingTime estimates minutes to read content, never less than one.
// Halves round to even.
func ReadingTime(content string) int {
	words := len(strings.Fields(content))
	minutes := int(math.RoundToEven(float64(words) / WordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}
