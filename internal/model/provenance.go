package model

import (
	"fmt"
	"time"
)

// ProvenanceEvent records a replacement of a GoldenData value. The history of
// events is the audit trail behind the reconciled record.
type ProvenanceEvent struct {
	FieldKey       string    `json:"field_key"`
	PreviousValue  string    `json:"previous_value"`
	PreviousOrigin Origin    `json:"previous_origin"`
	PreviousSource string    `json:"previous_source,omitempty"`
	NewValue       string    `json:"new_value"`
	NewOrigin      Origin    `json:"new_origin"`
	NewSource      string    `json:"new_source,omitempty"`
	At             time.Time `json:"at"`
}

// overlayField merges incoming into dst following origin precedence and
// appends an event to history whenever a present value is replaced.
func overlayField[T comparable](key string, dst *Field[T], incoming Field[T], history *[]ProvenanceEvent) {
	if !dst.accepts(incoming) {
		return
	}
	if dst.Present() {
		if dst.Value == incoming.Value && dst.Origin == incoming.Origin && dst.Source == incoming.Source {
			return
		}
		*history = append(*history, ProvenanceEvent{
			FieldKey:       key,
			PreviousValue:  fmt.Sprint(dst.Value),
			PreviousOrigin: dst.Origin,
			PreviousSource: dst.Source,
			NewValue:       fmt.Sprint(incoming.Value),
			NewOrigin:      incoming.Origin,
			NewSource:      incoming.Source,
			At:             incoming.UpdatedAt,
		})
	}
	*dst = incoming
}
