package resolver

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const intentSlotSchemaJSON = `{
  "type": "object",
  "required": ["slots", "ambiguities"],
  "properties": {
    "intent": {"type": ["string", "null"], "enum": ["rule_explain", "arrears_check", "fee_verify", null]},
    "intent_confidence": {"type": ["number", "null"]},
    "slots": {
      "type": "object",
      "properties": {
        "order_no": {"type": ["string", "null"]},
        "plate_no": {"type": ["string", "null"]},
        "city_code": {"type": ["string", "null"]},
        "lot_code": {"type": ["string", "null"]}
      }
    },
    "ambiguities": {"type": "array", "items": {"type": "string"}}
  }
}`

// NewIntentSlotValidator compiles the strict-JSON intent/slot contract once
// and returns a validator closure suitable for NewParser.
func NewIntentSlotValidator() (func([]byte) error, error) {
	var schemaDoc any
	if err := json.Unmarshal([]byte(intentSlotSchemaJSON), &schemaDoc); err != nil {
		return nil, fmt.Errorf("resolver: unmarshal intent/slot schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("intent_slot.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("resolver: add intent/slot schema resource: %w", err)
	}
	schema, err := c.Compile("intent_slot.json")
	if err != nil {
		return nil, fmt.Errorf("resolver: compile intent/slot schema: %w", err)
	}
	return func(raw []byte) error {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("unmarshal llm payload: %w", err)
		}
		return schema.Validate(doc)
	}, nil
}
