package entity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildExtractionJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map describing a serialized ExtractedReceipt. It is compiled once
// and used to validate extraction results before they are persisted.
func BuildExtractionJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"merchant": map[string]any{"type": []string{"string", "null"}},
			"date": map[string]any{
				"type":    []string{"string", "null"},
				"pattern": `^\d{4}-\d{2}-\d{2}$`,
			},
			"total": map[string]any{
				"type":    []string{"number", "null"},
				"minimum": 0.0,
			},
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"name":  map[string]any{"type": "string"},
						"price": map[string]any{"type": "number", "minimum": 0.0},
					},
					"required": []string{"name", "price"},
				},
			},
			"raw_text":   map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0},
		},
		"required": []string{"merchant", "date", "total", "items", "raw_text", "confidence"},
	}
}

// ValidateExtraction checks an ExtractedReceipt against the schema above.
func ValidateExtraction(r *ExtractedReceipt) error {
	if r == nil {
		return fmt.Errorf("nil extraction")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal extraction: %w", err)
	}
	return validateAgainstSchema(BuildExtractionJSONSchema(), data)
}

// validateAgainstSchema validates "data" against "schemaMap".
func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
