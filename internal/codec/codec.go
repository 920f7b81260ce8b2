package codec

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Marshal encodes v as a JSON payload ready for framing.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return data, nil
}

// Validator checks raw JSON payloads against a resolved schema.
type Validator struct {
	resolved *jsonschema.Resolved
}

// NewValidator resolves schema for validation.
func NewValidator(schema *jsonschema.Schema) (*Validator, error) {
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	return &Validator{resolved: resolved}, nil
}

// ValidatorFor infers a schema from T's JSON shape. Fields without
// omitempty are required.
func ValidatorFor[T any]() (*Validator, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema: %w", err)
	}

	return NewValidator(schema)
}

// Validate reports whether data is JSON that satisfies the schema.
func (v *Validator) Validate(data []byte) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	if err := v.resolved.Validate(instance); err != nil {
		return fmt.Errorf("validate message: %w", err)
	}

	return nil
}

// Decode unmarshals data into a T. If v is non-nil the payload is
// validated first.
func Decode[T any](data []byte, v *Validator) (T, error) {
	var out T

	if v != nil {
		if err := v.Validate(data); err != nil {
			return out, err
		}
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode message: %w", err)
	}

	return out, nil
}

// SchemaFromMap converts a map[string]any JSON schema to *jsonschema.Schema.
func SchemaFromMap(m map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	return &schema, nil
}
