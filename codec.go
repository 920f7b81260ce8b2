package nativemsg

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/nativemsg-go/internal/codec"
)

// Validator checks JSON payloads against a schema.
type Validator = codec.Validator

// MarshalMessage encodes v as a JSON payload.
func MarshalMessage(v any) ([]byte, error) {
	return codec.Marshal(v)
}

// NewValidator builds a Validator from an explicit schema.
func NewValidator(schema *jsonschema.Schema) (*Validator, error) {
	return codec.NewValidator(schema)
}

// ValidatorFor builds a Validator from T's JSON shape.
func ValidatorFor[T any]() (*Validator, error) {
	return codec.ValidatorFor[T]()
}

// DecodeMessage unmarshals a received payload into T, validating it first
// when v is non-nil.
func DecodeMessage[T any](data []byte, v *Validator) (T, error) {
	return codec.Decode[T](data, v)
}
