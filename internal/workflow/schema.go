package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const answerSchemaJSON = `{
  "type": "object",
  "required": ["conclusion", "key_points"],
  "properties": {
    "conclusion": {"type": "string"},
    "key_points": {"type": "array", "items": {"type": "string"}}
  }
}`

// NewAnswerValidator compiles the strict-JSON {conclusion, key_points[]}
// contract once and returns a validator closure suitable for NewSynthesizer.
func NewAnswerValidator() (func([]byte) error, error) {
	var schemaDoc any
	if err := json.Unmarshal([]byte(answerSchemaJSON), &schemaDoc); err != nil {
		return nil, fmt.Errorf("workflow: unmarshal answer schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("answer.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("workflow: add answer schema resource: %w", err)
	}
	schema, err := c.Compile("answer.json")
	if err != nil {
		return nil, fmt.Errorf("workflow: compile answer schema: %w", err)
	}
	return func(raw []byte) error {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("unmarshal llm payload: %w", err)
		}
		return schema.Validate(doc)
	}, nil
}
