package arxiv

import (
	"fmt"
	"strings"
)

// Overrides maps a lowercased keyword to the phrases searched in its
// place. Use it for terms that are too broad to search verbatim.
type Overrides map[string][]string

// DefaultOverrides expands bare acronyms that would match most of the
// archive.
func DefaultOverrides() Overrides {
	return Overrides{
		"ai": {"artificial intelligence", "AI model", "AI system"},
		"ml": {"machine learning"},
	}
}

// BuildQuery converts a keyword into an arXiv search_query expression.
//
//   - override keywords become OR'd title/abstract phrase matches
//   - multi-word keywords match the exact phrase, or every term in the abstract
//   - anything else matches title or abstract verbatim
func BuildQuery(keyword string, overrides Overrides) string {
	kw := strings.TrimSpace(strings.ReplaceAll(keyword, `"`, ""))
	if kw == "" {
		return ""
	}

	if phrases, ok := overrides[strings.ToLower(kw)]; ok && len(phrases) > 0 {
		clauses := make([]string, 0, len(phrases))
		for _, p := range phrases {
			clauses = append(clauses, phraseClause(p))
		}
		return "(" + strings.Join(clauses, " OR ") + ")"
	}

	terms := strings.Fields(kw)
	if len(terms) > 1 {
		phrase := strings.Join(terms, " ")
		and := make([]string, len(terms))
		for i, t := range terms {
			and[i] = "abs:" + t
		}
		return fmt.Sprintf("(%s) OR (%s)", phraseClause(phrase), strings.Join(and, " AND "))
	}

	return fmt.Sprintf("ti:%s OR abs:%s", kw, kw)
}

func phraseClause(p string) string {
	return fmt.Sprintf(`ti:"%s" OR abs:"%s"`, p, p)
}
