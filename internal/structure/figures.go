package structure

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxDescriptionLen is the rune length after which a caption description is
// cut and suffixed with "...".
const MaxDescriptionLen = 300

const (
	imageDescription = "Visual content identified in the paper"
	ellipsis         = "..."
)

var (
	figureCaption = regexp.MustCompile(`(?i)(figure|fig\.?)\s+(\d+)[:.]?\s*(.+)`)
	tableCaption  = regexp.MustCompile(`(?i)table\s+(\d+)[:.]?\s*(.+)`)
)

// Detect catalogs figure and table captions plus raw image regions. The
// output has unique IDs and is ordered by (page, title).
func Detect(pages []Page) []Figure {
	var found []Figure

	for _, page := range pages {
		for _, block := range page.Blocks {
			text := strings.TrimSpace(block.Text)
			if utf8.RuneCountInString(text) <= MinBodyLen {
				continue
			}
			if m := figureCaption.FindStringSubmatch(text); m != nil {
				found = append(found, Figure{
					ID:          "fig" + m[2],
					Title:       "Figure " + m[2],
					Description: truncate(m[3]),
					Kind:        KindFigure,
					Page:        page.Number,
				})
			}
			if m := tableCaption.FindStringSubmatch(text); m != nil {
				found = append(found, Figure{
					ID:          "table" + m[1],
					Title:       "Table " + m[1],
					Description: truncate(m[2]),
					Kind:        KindTable,
					Page:        page.Number,
				})
			}
		}

		for i := range page.Images {
			found = append(found, Figure{
				ID:          fmt.Sprintf("img_p%d_%d", page.Number, i),
				Title:       fmt.Sprintf("Figure (Page %d)", page.Number),
				Description: imageDescription,
				Kind:        KindImage,
				Page:        page.Number,
			})
		}
	}

	out := dedupeFigures(found)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// dedupeFigures keeps the first entry for each ID.
func dedupeFigures(in []Figure) []Figure {
	seen := make(map[string]struct{}, len(in))
	out := make([]Figure, 0, len(in))
	for _, f := range in {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxDescriptionLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxDescriptionLen]) + ellipsis
}
