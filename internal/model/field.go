package model

import (
	"encoding/json"
	"time"
)

// Origin tags where a GoldenData value came from.
type Origin string

// Provenance origins, strongest first.
const (
	OriginManual    Origin = "manual"
	OriginAPI       Origin = "api"
	OriginEstimated Origin = "estimated"
	OriginFallback  Origin = "fallback"
)

// rank orders origins for merge precedence. The empty origin (absent) ranks lowest.
func (o Origin) rank() int {
	switch o {
	case OriginManual:
		return 4
	case OriginAPI:
		return 3
	case OriginEstimated:
		return 2
	case OriginFallback:
		return 1
	default:
		return 0
	}
}

// Authoritative reports whether o came from a registry or the user.
func (o Origin) Authoritative() bool {
	return o == OriginManual || o == OriginAPI
}

// Field is a value tagged with its provenance. A Field with an empty Origin is
// absent and marshals to JSON null.
type Field[T comparable] struct {
	Value     T         `json:"value"`
	Origin    Origin    `json:"origin"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromAPI tags v as returned by the named registry.
func FromAPI[T comparable](v T, source string, at time.Time) Field[T] {
	return Field[T]{Value: v, Origin: OriginAPI, Source: source, UpdatedAt: at}
}

// FromManual tags v as typed by the user.
func FromManual[T comparable](v T, at time.Time) Field[T] {
	return Field[T]{Value: v, Origin: OriginManual, Source: "user", UpdatedAt: at}
}

// Estimated tags v as derived from other fields; rule names the derivation.
func Estimated[T comparable](v T, rule string, at time.Time) Field[T] {
	return Field[T]{Value: v, Origin: OriginEstimated, Source: rule, UpdatedAt: at}
}

// Fallback tags v as a configured default used when no source answered.
func Fallback[T comparable](v T, rule string, at time.Time) Field[T] {
	return Field[T]{Value: v, Origin: OriginFallback, Source: rule, UpdatedAt: at}
}

// Present reports whether the field holds a value.
func (f Field[T]) Present() bool { return f.Origin != "" }

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) { return f.Value, f.Present() }

// accepts reports whether incoming should replace f under the precedence
// manual > api > estimated > fallback. Equal ranks are replaced so the most
// recent acquisition wins.
func (f Field[T]) accepts(incoming Field[T]) bool {
	if !incoming.Present() {
		return false
	}
	return incoming.Origin.rank() >= f.Origin.rank()
}

// MarshalJSON implements json.Marshaler.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(fieldJSON[T](f))
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Field[T]{}
		return nil
	}
	var p fieldJSON[T]
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = Field[T](p)
	return nil
}

// fieldJSON shares Field's layout without its JSON methods.
type fieldJSON[T comparable] struct {
	Value     T         `json:"value"`
	Origin    Origin    `json:"origin"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
