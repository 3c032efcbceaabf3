package llm

import (
	"github.com/sgaravatti/cantieri-docs/constants"
)

const datePattern = `^\d{4}-\d{2}-\d{2}$`

// BuildDocumentJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass it to the model as a structured output constraint and
// also use it locally to validate whatever comes back.
func BuildDocumentJSONSchema() map[string]any {
	props := map[string]any{
		"doc_type": map[string]any{
			"type": "string",
			"enum": constants.DocTypesAsStringSlice(),
		},
		"holder_name": map[string]any{"type": "string", "minLength": 1},
		"tax_code":    map[string]any{"type": "string", "pattern": `^[A-Z0-9]{16}$`},
		"issue_date":  map[string]any{"type": "string", "pattern": datePattern},
		"expiry_date": map[string]any{"type": "string", "pattern": datePattern},
		"confidence":  map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	// Only doc_type is required: the model must classify (altro when unsure)
	// and must never invent holder or dates it cannot read.
	required := []string{"doc_type"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}
