package router

import "time"

// EventType classifies router diagnostic events
type EventType string

const (
	EventVenuesScored     EventType = "venues_scored"
	EventScoringError     EventType = "scoring_error"
	EventSplitPlanned     EventType = "split_planned"
	EventOrderRouted      EventType = "order_routed"
	EventVenueStatus      EventType = "venue_status"
	EventCacheInvalidated EventType = "cache_invalidated"
)

// Event is a diagnostic emitted during routing. Consumers register an
// Observer on the router; the router never depends on a global emitter.
type Event struct {
	Type      EventType   `json:"type"`
	Venue     string      `json:"venue,omitempty"`
	Symbol    string      `json:"symbol,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Observer receives router events. Callbacks run synchronously on the
// routing path and must return quickly.
type Observer func(Event)
