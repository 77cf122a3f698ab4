package tunnel

import "time"

// Snapshot is an immutable read model of one tunnel. It never shares memory
// with the controller's state, so callers may keep it.
type Snapshot struct {
	Name string
	// Managed is false for live interfaces with no saved config
	Managed      bool
	FriendlyName string
	Address      []string
	PublicKey    string
	Peers        int
	State        State
	UpdatedAt    time.Time
}

// Clone deep copies the snapshot
func (s Snapshot) Clone() Snapshot {
	s.Address = append([]string(nil), s.Address...)
	s.State = s.State.Clone()
	return s
}

// EventType identifies what happened to a tunnel
type EventType string

const (
	EventAdded          EventType = "added"
	EventRemoved        EventType = "removed"
	EventUpdated        EventType = "updated"
	EventStateChanged   EventType = "state-changed"
	EventStatsUpdated   EventType = "stats-updated"
	EventOrphanDetected EventType = "orphan-detected"
	EventLoadFailed     EventType = "load-failed"
)

// Event is published to subscribers on every change
type Event struct {
	ID       string
	Type     EventType
	Tunnel   string
	Previous Kind
	Snapshot Snapshot
	// Err is set for load-failed events and failed operations
	Err  error
	Time time.Time
}
