package privilege

import (
	"context"
	"fmt"

	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
)

// Policy action IDs, one per privileged operation
const (
	ActionBringUp   = "org.wgtunnel.tunnel.up"
	ActionBringDown = "org.wgtunnel.tunnel.down"
)

// ActionID returns the policy action for a privileged operation
func ActionID(op process.Operation) (string, error) {
	switch op {
	case process.OpBringUp:
		return ActionBringUp, nil
	case process.OpBringDown:
		return ActionBringDown, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotPrivileged, op)
}

// Decision is the policy service's answer
type Decision int

const (
	Granted Decision = iota + 1
	Refused
	NoService
)

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case Refused:
		return "denied"
	case NoService:
		return "unavailable"
	}
	return "unknown"
}

// Authority is the policy-authorization service:
// authorize(action_id, justification) -> granted | denied | unavailable.
// An error is treated the same as NoService.
type Authority interface {
	Check(ctx context.Context, actionID, justification string) (Decision, error)
}

// StaticAuthority always gives the same answer. It backs the "none"
// authority setting for sessions that already run as root.
type StaticAuthority struct {
	Decision Decision
}

// Check returns the fixed decision
func (a StaticAuthority) Check(ctx context.Context, actionID, justification string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return NoService, err
	}
	return a.Decision, nil
}
