package summarize

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/paperpulse/internal/types"
)

// Generation parameters for digest summaries.
const (
	MaxTokens   = 150
	Temperature = 0.7
)

// SummaryPrompt builds the digest summary request for one paper.
func SummaryPrompt(title, abstract, tone string) string {
	return fmt.Sprintf(`Summarize this research paper in %s language (max 120 words):
Title: %s
Abstract: %s

Focus on: What problem it solves, the approach, and key findings.`, tone, title, abstract)
}

// AnalysisSystemPrompt frames the detailed analysis request.
const AnalysisSystemPrompt = `You are a research analyst who writes structured breakdowns of academic papers for busy researchers.

Respond with a single JSON object and nothing else. Be thorough but concise, focusing on actionable insights.

Fields:
- executive_summary: 2-3 sentences on the main contribution and its significance
- key_contributions: 3-5 short statements, one per contribution
- methodology: 2-3 sentences on the approach, methods or techniques
- results: 2-3 sentences on key results, metrics or discoveries
- technical_approach: 2-3 sentences on implementation or theoretical framework
- significance: 2-3 sentences on why the work matters and where it applies
- limitations: 2-3 sentences on acknowledged limitations and future work
- technical_difficulty: integer 1-5 (1=Basic, 2=Intermediate, 3=Advanced, 4=Expert, 5=Cutting-edge)
- target_audience: 1-2 sentences on who benefits most from reading it`

// AnalysisUserPrompt renders the paper details for analysis.
func AnalysisUserPrompt(p types.Paper) string {
	return fmt.Sprintf(`Analyze this research paper.

Title: %s
Authors: %s
Categories: %s
Abstract: %s`, p.Title, strings.Join(p.Authors, ", "), strings.Join(p.Categories, ", "), p.Abstract)
}
