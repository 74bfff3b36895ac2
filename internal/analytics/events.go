package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventEntryView  EventType = "entry_view"
)

// Event is one analytics record. Search events fill the query fields;
// entry views fill EntryID and Found.
type Event struct {
	Type          EventType `json:"type"`
	Query         string    `json:"query,omitempty"`
	Terms         []string  `json:"terms,omitempty"`
	Category      string    `json:"category,omitempty"`
	TotalHits     int       `json:"total_hits"`
	Returned      int       `json:"returned"`
	TopEntryID    string    `json:"top_entry_id,omitempty"`
	EntryID       string    `json:"entry_id,omitempty"`
	Found         bool      `json:"found"`
	CacheHit      bool      `json:"cache_hit"`
	LatencyMicros int64     `json:"latency_us"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Tracker accepts events without blocking the request path.
type Tracker interface {
	Track(event Event)
}
