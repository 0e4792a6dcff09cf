package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const (
	schemaVerify   = "verify"
	schemaEnvelope = "verify_envelope"
)

const responseMatchesSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "additionalProperties": false,
    "properties": {
      "type": {"type": "string", "enum": ["contains", "regex"]},
      "value": {"type": "string"},
      "xPath": {"type": "string", "minLength": 1},
      "jsonPath": {"type": "string", "minLength": 1},
      "invert": {"type": "boolean"}
    },
    "anyOf": [
      {"required": ["value"]},
      {"required": ["xPath"]},
      {"required": ["jsonPath"]}
    ]
  }
}`

var requestSchemas = map[string]string{
	schemaVerify: `{
  "type": "object",
  "required": ["presentation", "notaryKey"],
  "properties": {
    "presentation": {"type": "string", "minLength": 1},
    "notaryKey": {"type": "string", "minLength": 1},
    "responseMatches": ` + responseMatchesSchema + `
  }
}`,
	schemaEnvelope: `{
  "type": "object",
  "required": ["envelope", "notaryKey"],
  "properties": {
    "envelope": {"type": "object"},
    "notaryKey": {"type": "string", "minLength": 1},
    "responseMatches": ` + responseMatchesSchema + `
  }
}`,
}

// Cache of compiled schemas per request kind
var requestValidatorMap = make(map[string]*gojsonschema.Schema)
var validatorMutex sync.RWMutex

func compiledSchema(kind string) (*gojsonschema.Schema, error) {
	validatorMutex.RLock()
	compiled, exists := requestValidatorMap[kind]
	validatorMutex.RUnlock()
	if exists {
		return compiled, nil
	}

	src, ok := requestSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("unknown request kind %q", kind)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", kind, err)
	}

	validatorMutex.Lock()
	requestValidatorMap[kind] = schema
	validatorMutex.Unlock()
	return schema, nil
}

// validateRequest checks a raw JSON request body against the schema of its kind.
func validateRequest(kind string, body []byte) error {
	schema, err := compiledSchema(kind)
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("request is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var b strings.Builder
		for _, e := range result.Errors() {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(e.String())
		}
		return fmt.Errorf("request validation failed: %s", b.String())
	}
	return nil
}
