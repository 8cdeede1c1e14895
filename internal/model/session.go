package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// SessionState is the lifecycle state of an audit session.
type SessionState string

// Session states. A session only moves forward: DRAFT -> READY -> COMPLETED.
const (
	StateDraft     SessionState = "DRAFT"
	StateReady     SessionState = "READY"
	StateCompleted SessionState = "COMPLETED"
)

// ErrInvalidTransition is returned when a state change would skip or reverse a step.
var ErrInvalidTransition = eris.New("invalid session state transition")

// CanTransition reports whether from -> to is allowed. Staying in DRAFT or
// READY is allowed (repeated manual rounds, refresh).
func CanTransition(from, to SessionState) bool {
	switch from {
	case StateDraft:
		return to == StateDraft || to == StateReady
	case StateReady:
		return to == StateReady || to == StateCompleted
	default:
		return false
	}
}

// SourceStatus is the outcome of one registry call during acquisition.
type SourceStatus string

// Source outcomes.
const (
	SourceOK          SourceStatus = "ok"
	SourceEmpty       SourceStatus = "empty"
	SourceFailed      SourceStatus = "failed"
	SourceTimeout     SourceStatus = "timeout"
	SourceCircuitOpen SourceStatus = "circuit_open"
	SourceSkipped     SourceStatus = "skipped"
)

// SourceReport summarizes a registry call for the caller and the audit trail.
type SourceReport struct {
	Source     string       `json:"source"`
	Status     SourceStatus `json:"status"`
	Attempts   int          `json:"attempts"`
	DurationMs int64        `json:"duration_ms"`
	Error      string       `json:"error,omitempty"`
}

// AuditSession wraps GoldenData with its acquisition lifecycle.
type AuditSession struct {
	ID            string         `json:"id"`
	State         SessionState   `json:"state"`
	Query         string         `json:"query"`
	Data          GoldenData     `json:"data"`
	MissingFields []MissingField `json:"missing_fields,omitempty"`
	Sources       []SourceReport `json:"sources,omitempty"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
}

// Transition moves s to the given state, refreshing the missing-field list.
func (s *AuditSession) Transition(to SessionState) error {
	if !CanTransition(s.State, to) {
		return eris.Wrapf(ErrInvalidTransition, "%s -> %s", s.State, to)
	}
	s.State = to
	return nil
}

// Classify recomputes the missing fields and returns the state they imply
// (DRAFT when anything is missing, READY otherwise).
func (s *AuditSession) Classify() SessionState {
	s.MissingFields = s.Data.MissingFields()
	if len(s.MissingFields) > 0 {
		return StateDraft
	}
	return StateReady
}

// Expired reports whether the session is past its idle deadline.
func (s *AuditSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuditResult is what Init and Complete hand back to callers. TempID is set
// only for DRAFT sessions; SessionID is always set.
type AuditResult struct {
	Status        SessionState   `json:"status"`
	SessionID     string         `json:"session_id"`
	TempID        string         `json:"temp_id,omitempty"`
	MissingFields []MissingField `json:"missing_fields,omitempty"`
	Data          GoldenData     `json:"data"`
	Sources       []SourceReport `json:"sources,omitempty"`
}

// ResultOf builds the caller-facing view of s.
func ResultOf(s *AuditSession) AuditResult {
	r := AuditResult{
		Status:    s.State,
		SessionID: s.ID,
		Data:      s.Data,
		Sources:   s.Sources,
	}
	if s.State == StateDraft {
		r.TempID = s.ID
		r.MissingFields = s.MissingFields
	}
	return r
}
