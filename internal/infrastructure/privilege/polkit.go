package privilege

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
)

const (
	polkitBusName    = "org.freedesktop.PolicyKit1"
	polkitObjectPath = "/org/freedesktop/PolicyKit1/Authority"
	polkitCheck      = "org.freedesktop.PolicyKit1.Authority.CheckAuthorization"

	// CheckAuthorizationFlags: let the auth agent prompt the user
	polkitAllowUserInteraction uint32 = 0x1

	detailJustification = "org.wgtunnel.justification"
)

// polkitSubject is the (sa{sv}) subject argument
type polkitSubject struct {
	Kind    string
	Details map[string]dbus.Variant
}

// polkitResult is the (bba{ss}) reply
type polkitResult struct {
	IsAuthorized bool
	IsChallenge  bool
	Details      map[string]string
}

// PolkitAuthority asks polkit over the system bus whether this process may
// perform an action.
type PolkitAuthority struct {
	mu   sync.Mutex
	conn *dbus.Conn
	// connect is swapped in tests
	connect func() (*dbus.Conn, error)
}

// NewPolkitAuthority creates an authority that connects lazily on first use
func NewPolkitAuthority() *PolkitAuthority {
	return &PolkitAuthority{connect: func() (*dbus.Conn, error) {
		return dbus.ConnectSystemBus()
	}}
}

// Check calls CheckAuthorization for the current process
func (a *PolkitAuthority) Check(ctx context.Context, actionID, justification string) (Decision, error) {
	conn, err := a.bus()
	if err != nil {
		return NoService, err
	}

	subject := polkitSubject{
		Kind: "unix-process",
		Details: map[string]dbus.Variant{
			"pid":        dbus.MakeVariant(uint32(os.Getpid())),
			"start-time": dbus.MakeVariant(uint64(0)),
		},
	}
	details := map[string]string{}
	if justification != "" {
		details[detailJustification] = justification
	}

	var result polkitResult
	obj := conn.Object(polkitBusName, dbus.ObjectPath(polkitObjectPath))
	call := obj.CallWithContext(ctx, polkitCheck, 0, subject, actionID, details, polkitAllowUserInteraction, "")
	if err := call.Store(&result); err != nil {
		if dbusErrorName(err) == "org.freedesktop.PolicyKit1.Error.Cancelled" {
			return Refused, nil
		}
		a.reset()
		return NoService, fmt.Errorf("polkit CheckAuthorization: %w", err)
	}

	logging.Debugf("polkit %s: authorized=%t challenge=%t", actionID, result.IsAuthorized, result.IsChallenge)
	return decisionFrom(result), nil
}

func dbusErrorName(err error) string {
	var e dbus.Error
	if errors.As(err, &e) {
		return e.Name
	}
	var pe *dbus.Error
	if errors.As(err, &pe) {
		return pe.Name
	}
	return ""
}

// decisionFrom maps a CheckAuthorization result. A challenge means polkit
// wanted to authenticate the user but no agent could ask, so the service
// was unable to decide.
func decisionFrom(r polkitResult) Decision {
	switch {
	case r.IsAuthorized:
		return Granted
	case r.IsChallenge:
		return NoService
	default:
		return Refused
	}
}

func (a *PolkitAuthority) bus() (*dbus.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil && a.conn.Connected() {
		return a.conn, nil
	}
	conn, err := a.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	a.conn = conn
	return conn, nil
}

func (a *PolkitAuthority) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
}

// Close releases the bus connection
func (a *PolkitAuthority) Close() error {
	a.reset()
	return nil
}
