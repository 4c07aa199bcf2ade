package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Serializer converts journal values to and from their stored form.
type Serializer[T any] interface {
	Marshal(obj T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// JSONSerializer implements Serializer using JSON encoding
type JSONSerializer[T any] struct{}

// NewJSONSerializer creates a new JSON serializer
func NewJSONSerializer[T any]() *JSONSerializer[T] {
	return &JSONSerializer[T]{}
}

// Marshal converts an object to JSON bytes
func (s *JSONSerializer[T]) Marshal(obj T) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("json marshal failed: %w", err)
	}
	return data, nil
}

// Unmarshal converts JSON bytes to an object. Unknown fields are an error,
// so a record written by a different schema is not silently half-read.
func (s *JSONSerializer[T]) Unmarshal(data []byte) (T, error) {
	var obj T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&obj); err != nil {
		return obj, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return obj, nil
}
