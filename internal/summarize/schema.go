package summarize

// AnalysisSchema is the response_format json_schema for Analyze.
var AnalysisSchema = map[string]any{
	"name":   "paper_analysis",
	"strict": true,
	"schema": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"executive_summary": map[string]any{"type": "string", "minLength": 1},
			"key_contributions": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
			"methodology":        map[string]any{"type": "string"},
			"results":            map[string]any{"type": "string"},
			"technical_approach": map[string]any{"type": "string"},
			"significance":       map[string]any{"type": "string"},
			"limitations":        map[string]any{"type": "string"},
			"technical_difficulty": map[string]any{
				"type":    "integer",
				"minimum": 1,
				"maximum": 5,
			},
			"target_audience": map[string]any{"type": "string"},
		},
		"required": []string{
			"executive_summary",
			"key_contributions",
			"methodology",
			"results",
			"technical_approach",
			"significance",
			"limitations",
			"technical_difficulty",
			"target_audience",
		},
		"additionalProperties": false,
	},
}
