package tunnel

import (
	"fmt"
	"time"
)

// Kind is the lifecycle state of a tunnel.
//
// Allowed transitions:
//
//	down          -> bringing-up | up (adopted at startup)
//	bringing-up   -> up | failed
//	up            -> bringing-down | failed (interface vanished) | up (stats refresh)
//	bringing-down -> down | failed
//	failed        -> bringing-up | bringing-down
//
// unmanaged is a live interface with no saved config. It never transitions.
type Kind string

const (
	KindDown         Kind = "down"
	KindBringingUp   Kind = "bringing-up"
	KindUp           Kind = "up"
	KindBringingDown Kind = "bringing-down"
	KindFailed       Kind = "failed"
	KindUnmanaged    Kind = "unmanaged"
)

var transitions = map[Kind][]Kind{
	KindDown:         {KindBringingUp, KindUp},
	KindBringingUp:   {KindUp, KindFailed},
	KindUp:           {KindBringingDown, KindFailed, KindUp},
	KindBringingDown: {KindDown, KindFailed},
	KindFailed:       {KindBringingUp, KindBringingDown},
}

// CanTransition reports whether from -> to is an allowed edge
func CanTransition(from, to Kind) bool {
	for _, k := range transitions[from] {
		if k == to {
			return true
		}
	}
	return false
}

// Transitional reports whether a process step is in flight in this state
func (k Kind) Transitional() bool {
	return k == KindBringingUp || k == KindBringingDown
}

// Active reports whether the tunnel is up or on its way up
func (k Kind) Active() bool {
	return k == KindUp || k == KindBringingUp
}

// PeerStats is the last polled runtime view of one peer
type PeerStats struct {
	PublicKey           string
	Endpoint            string
	AllowedIPs          []string
	LatestHandshake     time.Time
	RxBytes             int64
	TxBytes             int64
	PersistentKeepalive time.Duration
}

// State is a tunnel's lifecycle state plus what goes with it: the failure
// reason when failed, peer statistics when up.
type State struct {
	Kind   Kind
	Reason string
	Peers  []PeerStats
	Since  time.Time
}

// Down returns the initial state of a discovered config
func Down() State {
	return State{Kind: KindDown, Since: time.Now()}
}

// Failed returns a failed state with a human readable reason
func Failed(reason string) State {
	return State{Kind: KindFailed, Reason: reason, Since: time.Now()}
}

// Clone deep copies the state
func (s State) Clone() State {
	if s.Peers != nil {
		peers := make([]PeerStats, len(s.Peers))
		for i, p := range s.Peers {
			p.AllowedIPs = append([]string(nil), p.AllowedIPs...)
			peers[i] = p
		}
		s.Peers = peers
	}
	return s
}

func (s State) String() string {
	if s.Kind == KindFailed && s.Reason != "" {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
	}
	return string(s.Kind)
}

// CheckBringUp rejects a bring-up request that the current state does not allow
func (s State) CheckBringUp() error {
	switch s.Kind {
	case KindUp, KindBringingUp:
		return ErrAlreadyActive
	case KindBringingDown:
		return ErrBusy
	case KindUnmanaged:
		return ErrUnmanaged
	}
	return nil
}

// CheckBringDown rejects a bring-down request that the current state does not allow
func (s State) CheckBringDown() error {
	switch s.Kind {
	case KindDown, KindBringingDown:
		return ErrAlreadyInactive
	case KindBringingUp:
		return ErrBusy
	case KindUnmanaged:
		return ErrUnmanaged
	}
	return nil
}
