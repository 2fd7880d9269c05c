package router

import (
	"errors"
	"fmt"
)

// Sentinel errors allowed to propagate out of RouteOrder so callers can
// distinguish "nothing to do" from "attempted and failed".
var (
	// ErrNoVenuesAvailable means the active-venue list was empty when the
	// routing context was built.
	ErrNoVenuesAvailable = errors.New("no venues available for routing")

	// ErrNoQualifyingVenue means neither a split plan nor any single venue
	// met the execution quality gate. No execution call was made.
	ErrNoQualifyingVenue = errors.New("no venue meets minimum execution quality")
)

// ScoringError records a per-venue scoring failure. Non-fatal: the venue is
// dropped from the batch and a diagnostic event is emitted.
type ScoringError struct {
	Venue string
	Err   error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring failed for venue %s: %v", e.Venue, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// ValidationError means a routing decision referenced a venue outside the
// context's available set. Defensive check, fatal to the request.
type ValidationError struct {
	Venue  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid routing decision for venue %s: %s", e.Venue, e.Reason)
}
