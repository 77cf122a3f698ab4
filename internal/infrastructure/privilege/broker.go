package privilege

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
)

// Elevation methods wrapped around a privileged command
const (
	ElevationNone   = "none"
	ElevationPkexec = "pkexec"
	ElevationSudo   = "sudo"
)

// DefaultTicketTTL bounds how long a granted ticket may wait to be used
const DefaultTicketTTL = 30 * time.Second

// Runner runs a built command
type Runner interface {
	Run(ctx context.Context, cmd process.Command) (*process.Outcome, error)
}

// Broker mediates every privileged command. Authorize asks the policy
// service and hands out a single-use Ticket; ExecutePrivileged runs a
// command only against an unused, matching ticket.
type Broker struct {
	authority Authority
	runner    Runner
	elevation string
	ttl       time.Duration
	now       func() time.Time
}

// NewBroker creates a broker. elevation is one of none, pkexec or sudo.
func NewBroker(authority Authority, runner Runner, elevation string, ttl time.Duration) (*Broker, error) {
	switch elevation {
	case "", ElevationNone, ElevationPkexec, ElevationSudo:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownElevation, elevation)
	}
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &Broker{
		authority: authority,
		runner:    runner,
		elevation: elevation,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// Authorize asks the authority for op. On a grant it returns a fresh ticket
// bound to op; otherwise an *AuthError.
func (b *Broker) Authorize(ctx context.Context, op process.Operation, justification string) (*Ticket, error) {
	actionID, err := ActionID(op)
	if err != nil {
		return nil, err
	}

	log := logging.WithFields(logrus.Fields{"op": op.String(), "action": actionID})
	decision, err := b.authority.Check(ctx, actionID, justification)
	if err != nil {
		log.WithError(err).Warn("authorization service unavailable")
		return nil, &AuthError{Kind: Unavailable, ActionID: actionID, Err: err}
	}

	switch decision {
	case Granted:
		log.Debug("authorization granted")
		return &Ticket{
			op:      op,
			issuer:  b,
			expires: b.now().Add(b.ttl),
		}, nil
	case Refused:
		log.Info("authorization denied")
		return nil, &AuthError{Kind: Denied, ActionID: actionID}
	default:
		log.Warn("authorization service unavailable")
		return nil, &AuthError{Kind: Unavailable, ActionID: actionID}
	}
}

// ExecutePrivileged consumes ticket and runs cmd. The ticket is spent even
// when the checks after consumption fail.
func (b *Broker) ExecutePrivileged(ctx context.Context, ticket *Ticket, cmd process.Command) (*process.Outcome, error) {
	if ticket == nil {
		return nil, ErrNoTicket
	}
	if ticket.issuer != b {
		return nil, ErrForeignTicket
	}
	if !ticket.consume() {
		return nil, ErrTicketConsumed
	}
	if b.now().After(ticket.expires) {
		return nil, ErrTicketExpired
	}
	if cmd.Op != ticket.op {
		return nil, fmt.Errorf("%w: ticket for %s, command is %s", ErrTicketMismatch, ticket.op, cmd.Op)
	}

	return b.runner.Run(ctx, b.elevate(cmd))
}

// Run executes a read-only command. Privileged operations are refused.
func (b *Broker) Run(ctx context.Context, cmd process.Command) (*process.Outcome, error) {
	if cmd.Op.Privileged() {
		return nil, ErrNoTicket
	}
	return b.runner.Run(ctx, cmd)
}

func (b *Broker) elevate(cmd process.Command) process.Command {
	switch b.elevation {
	case ElevationPkexec:
		cmd.Args = append([]string{cmd.Name}, cmd.Args...)
		cmd.Name = "pkexec"
	case ElevationSudo:
		cmd.Args = append([]string{"-n", cmd.Name}, cmd.Args...)
		cmd.Name = "sudo"
	}
	return cmd
}
