package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Vector is a fixed-dimension embedding vector stored as JSON in the database.
// It is immutable once produced; the dimension is determined by the model that
// generated it.
type Vector []float32

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded representation of the vector.
//   - error: non-nil if marshaling fails.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = Vector{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Vector")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, v)
}

// IsZero reports whether every component of the vector is zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
