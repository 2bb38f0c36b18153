package clarify

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const reactActionSchemaJSON = `{
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": {"type": "string", "enum": ["call_tool", "ask_user", "finish_clarify", "abort"]},
    "clarify_question": {"type": ["string", "null"]},
    "slot_updates": {"type": "object"},
    "resolved_intent": {"type": ["string", "null"], "enum": ["rule_explain", "arrears_check", "fee_verify", null]},
    "route_target": {"type": ["string", "null"], "enum": ["rule_explain", "arrears_check", "fee_verify", null]},
    "intent_evidence": {"type": "array", "items": {"type": "string"}},
    "reason": {"type": ["string", "null"]},
    "tool_name": {"type": "string"},
    "tool_args": {"type": "object"}
  }
}`

// NewReactActionValidator compiles the ReAct per-round action contract once
// and returns a validator closure suitable for NewAgent.
func NewReactActionValidator() (func([]byte) error, error) {
	var schemaDoc any
	if err := json.Unmarshal([]byte(reactActionSchemaJSON), &schemaDoc); err != nil {
		return nil, fmt.Errorf("clarify: unmarshal react action schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("react_action.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("clarify: add react action schema resource: %w", err)
	}
	schema, err := c.Compile("react_action.json")
	if err != nil {
		return nil, fmt.Errorf("clarify: compile react action schema: %w", err)
	}
	return func(raw []byte) error {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("unmarshal llm payload: %w", err)
		}
		return schema.Validate(doc)
	}, nil
}
