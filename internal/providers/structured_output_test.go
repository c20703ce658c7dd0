package providers

import (
	"encoding/json"
	"strings"
	"testing"
)

const analysisSchema = `{
	"name":"paper_analysis",
	"strict":true,
	"schema":{
		"type":"object",
		"properties":{
			"executive_summary":{"type":"string"},
			"technical_difficulty":{"type":"integer","minimum":1,"maximum":5}
		},
		"required":["executive_summary","technical_difficulty"]
	}
}`

func TestSanitizeSchemaForModel(t *testing.T) {
	t.Run("anthropic drops integer bounds", func(t *testing.T) {
		got, err := sanitizeSchemaForModel("anthropic/claude-3-haiku", json.RawMessage(analysisSchema))
		if err != nil {
			t.Fatalf("sanitizeSchemaForModel() error = %v", err)
		}
		if strings.Contains(string(got), `"minimum"`) || strings.Contains(string(got), `"maximum"`) {
			t.Fatalf("integer bounds should be removed, got: %s", got)
		}
	})

	t.Run("other models unchanged", func(t *testing.T) {
		raw := json.RawMessage(analysisSchema)
		got, err := sanitizeSchemaForModel("openai/gpt-4o-mini", raw)
		if err != nil {
			t.Fatalf("sanitizeSchemaForModel() error = %v", err)
		}
		if string(got) != string(raw) {
			t.Fatalf("schema changed: %s", got)
		}
	})
}

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain", `{"ok":true}`, false},
		{"code fence", "```json\n{\"ok\":true}\n```", false},
		{"surrounding prose", "Here is the analysis:\n{\"ok\":true}\nThanks.", false},
		{"empty", "   ", true},
		{"not json", "no object here", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStructuredJSON(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStructuredJSON() expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStructuredJSON() error = %v", err)
			}
			var parsed map[string]any
			if err := json.Unmarshal(got, &parsed); err != nil {
				t.Fatalf("result is not JSON: %v", err)
			}
			if ok, _ := parsed["ok"].(bool); !ok {
				t.Errorf("parsed = %#v", parsed)
			}
		})
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	schema := json.RawMessage(analysisSchema)

	if err := ValidateStructuredJSON(schema, json.RawMessage(`{"executive_summary":"x","technical_difficulty":3}`)); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
	if err := ValidateStructuredJSON(schema, json.RawMessage(`{"executive_summary":"x","technical_difficulty":9}`)); err == nil {
		t.Fatal("out-of-range difficulty accepted")
	}
	if err := ValidateStructuredJSON(schema, json.RawMessage(`{"technical_difficulty":2}`)); err == nil {
		t.Fatal("missing required field accepted")
	}
	if err := ValidateStructuredJSON(nil, json.RawMessage(`{"anything":1}`)); err != nil {
		t.Fatalf("empty schema should accept: %v", err)
	}
}
