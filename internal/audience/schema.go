package audience

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
)

const conditionSetSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "totalSpend":     { "$ref": "#/definitions/numberCondition" },
    "visits":         { "$ref": "#/definitions/integerCondition" },
    "lastActiveDate": { "$ref": "#/definitions/dateCondition" }
  },
  "definitions": {
    "operator": {
      "enum": ["greaterThan", "greaterOrEqual", "lessThan", "lessOrEqual", "equals"]
    },
    "numberCondition": {
      "type": "object",
      "required": ["operator", "value"],
      "additionalProperties": false,
      "properties": {
        "operator": { "$ref": "#/definitions/operator" },
        "value":    { "type": "number", "minimum": 0 }
      }
    },
    "integerCondition": {
      "type": "object",
      "required": ["operator", "value"],
      "additionalProperties": false,
      "properties": {
        "operator": { "$ref": "#/definitions/operator" },
        "value":    { "type": "integer", "minimum": 0 }
      }
    },
    "dateCondition": {
      "type": "object",
      "required": ["operator", "value"],
      "additionalProperties": false,
      "properties": {
        "operator": { "$ref": "#/definitions/operator" },
        "value":    { "type": "string", "minLength": 10 }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func conditionSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(conditionSetSchema))
	})
	return compiledSchema, schemaErr
}

// ValidateConditionDocument checks a raw condition-set document before it is
// decoded and stored on a segment.
func ValidateConditionDocument(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	schema, err := conditionSchema()
	if err != nil {
		return fmt.Errorf("compile condition schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return appErrors.NewValidation("conditions", "conditions must be a JSON object")
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return appErrors.NewValidation("conditions", strings.Join(msgs, "; "))
}
