package ingest

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// eventBatchSchema validates raw recorder event batches before they are
// decoded. Unknown event fields are rejected at the boundary
const eventBatchSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "type", "timestamp"],
    "additionalProperties": false,
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "type": {
        "enum": [
          "navigation", "click", "input", "blur",
          "keydown", "hover", "scroll", "select"
        ]
      },
      "timestamp": {"type": "integer", "minimum": 0},
      "url": {"type": "string"},
      "value": {"type": "string"},
      "key": {"type": "string"},
      "scrollX": {"type": "integer"},
      "scrollY": {"type": "integer"},
      "isSensitive": {"type": "boolean"},
      "target": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "tag": {"type": "string"},
          "testId": {"type": "string"},
          "role": {"type": "string"},
          "ariaLabel": {"type": "string"},
          "text": {"type": "string"},
          "elementId": {"type": "string"},
          "name": {"type": "string"},
          "classes": {"type": "array", "items": {"type": "string"}},
          "cssPath": {"type": "string"},
          "xpath": {"type": "string"},
          "isUnique": {"type": "boolean"}
        }
      }
    }
  }
}`

func compileEventSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(eventBatchSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("events.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("events.json")
}
