package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// RefusalError carries the model's stated reason for declining.
type RefusalError struct {
	Reason string
}

func (e *RefusalError) Error() string {
	return ErrRefusal.Error() + ": " + e.Reason
}

func (e *RefusalError) Is(target error) bool {
	return target == ErrRefusal
}

// structuredSchema infers the JSON schema of T and lets adjust narrow it
// (enums, limits). It returns the wire form sent as the request format and
// the resolved form used to validate the reply.
func structuredSchema[T any](adjust func(*jsonschema.Schema)) (json.RawMessage, *jsonschema.Resolved, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, nil, fmt.Errorf("infer schema: %w", err)
	}
	flattenNullable(schema)
	if adjust != nil {
		adjust(schema)
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, nil, fmt.Errorf("encode schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve schema: %w", err)
	}
	return raw, resolved, nil
}

// flattenNullable turns the ["null", X] types inferred for slices into X:
// the model must send a list, even an empty one.
func flattenNullable(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	if len(s.Types) == 2 {
		var other string
		hasNull := false
		for _, t := range s.Types {
			if t == "null" {
				hasNull = true
			} else {
				other = t
			}
		}
		if hasNull {
			s.Types = nil
			s.Type = other
		}
	}
	for _, p := range s.Properties {
		flattenNullable(p)
	}
	flattenNullable(s.Items)
}

// decodeStructured classifies and decodes a structured reply. An empty reply
// or a non-empty "refusal" field is a refusal; anything that is not a JSON
// object matching the schema is a schema violation.
func decodeStructured[T any](raw string, resolved *jsonschema.Resolved) (T, error) {
	var out T

	text := strings.TrimSpace(raw)
	if text == "" {
		return out, &RefusalError{Reason: "empty response"}
	}
	text = extractJSON(text)

	var instance map[string]any
	if err := json.Unmarshal([]byte(text), &instance); err != nil {
		return out, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if reason, _ := instance["refusal"].(string); strings.TrimSpace(reason) != "" {
		return out, &RefusalError{Reason: strings.TrimSpace(reason)}
	}
	if err := resolved.Validate(instance); err != nil {
		return out, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return out, nil
}
