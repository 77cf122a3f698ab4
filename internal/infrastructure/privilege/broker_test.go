package privilege

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
)

type recordingRunner struct {
	calls []process.Command
}

func (r *recordingRunner) Run(ctx context.Context, cmd process.Command) (*process.Outcome, error) {
	r.calls = append(r.calls, cmd)
	return &process.Outcome{}, nil
}

type errAuthority struct{ err error }

func (a errAuthority) Check(ctx context.Context, actionID, justification string) (Decision, error) {
	return NoService, a.err
}

func newTestBroker(t *testing.T, d Decision, elevation string) (*Broker, *recordingRunner) {
	t.Helper()
	runner := &recordingRunner{}
	b, err := NewBroker(StaticAuthority{Decision: d}, runner, elevation, time.Minute)
	require.NoError(t, err)
	return b, runner
}

func TestBroker_GrantedTicketRunsOnce(t *testing.T) {
	b, runner := newTestBroker(t, Granted, ElevationNone)
	tpl := process.DefaultTemplates()

	ticket, err := b.Authorize(context.Background(), process.OpBringUp, "bring up wg0")
	require.NoError(t, err)
	assert.Equal(t, process.OpBringUp, ticket.Operation())

	_, err = b.ExecutePrivileged(context.Background(), ticket, tpl.BringUp("/tmp/wg0.conf"))
	require.NoError(t, err)
	assert.True(t, ticket.Used())

	_, err = b.ExecutePrivileged(context.Background(), ticket, tpl.BringUp("/tmp/wg0.conf"))
	assert.ErrorIs(t, err, ErrTicketConsumed)
	assert.Len(t, runner.calls, 1)
}

func TestBroker_Denied(t *testing.T) {
	b, runner := newTestBroker(t, Refused, ElevationNone)

	ticket, err := b.Authorize(context.Background(), process.OpBringUp, "")
	assert.Nil(t, ticket)
	assert.ErrorIs(t, err, ErrDenied)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, ActionBringUp, authErr.ActionID)
	assert.Empty(t, runner.calls)
}

func TestBroker_Unavailable(t *testing.T) {
	runner := &recordingRunner{}
	b, err := NewBroker(errAuthority{err: fmt.Errorf("no system bus")}, runner, "", 0)
	require.NoError(t, err)

	_, err = b.Authorize(context.Background(), process.OpBringDown, "")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "no system bus")

	b2, _ := newTestBroker(t, NoService, "")
	_, err = b2.Authorize(context.Background(), process.OpBringDown, "")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBroker_ReadOnlyOperationsNeedNoTicket(t *testing.T) {
	b, runner := newTestBroker(t, Refused, ElevationNone)
	tpl := process.DefaultTemplates()

	_, err := b.Authorize(context.Background(), process.OpStatusQuery, "")
	assert.ErrorIs(t, err, ErrNotPrivileged)

	_, err = b.Run(context.Background(), tpl.StatusQuery("wg0"))
	require.NoError(t, err)

	_, err = b.Run(context.Background(), tpl.BringUp("/tmp/wg0.conf"))
	assert.ErrorIs(t, err, ErrNoTicket)
	assert.Len(t, runner.calls, 1)
}

func TestBroker_TicketChecks(t *testing.T) {
	tpl := process.DefaultTemplates()

	t.Run("nil ticket", func(t *testing.T) {
		b, _ := newTestBroker(t, Granted, "")
		_, err := b.ExecutePrivileged(context.Background(), nil, tpl.BringUp("x"))
		assert.ErrorIs(t, err, ErrNoTicket)
	})

	t.Run("wrong operation", func(t *testing.T) {
		b, runner := newTestBroker(t, Granted, "")
		ticket, err := b.Authorize(context.Background(), process.OpBringUp, "")
		require.NoError(t, err)
		_, err = b.ExecutePrivileged(context.Background(), ticket, tpl.BringDown("x"))
		assert.ErrorIs(t, err, ErrTicketMismatch)
		assert.Empty(t, runner.calls)
	})

	t.Run("expired", func(t *testing.T) {
		b, runner := newTestBroker(t, Granted, "")
		ticket, err := b.Authorize(context.Background(), process.OpBringUp, "")
		require.NoError(t, err)
		b.now = func() time.Time { return time.Now().Add(time.Hour) }
		_, err = b.ExecutePrivileged(context.Background(), ticket, tpl.BringUp("x"))
		assert.ErrorIs(t, err, ErrTicketExpired)
		assert.Empty(t, runner.calls)
	})

	t.Run("other broker", func(t *testing.T) {
		b1, _ := newTestBroker(t, Granted, "")
		b2, runner := newTestBroker(t, Granted, "")
		ticket, err := b1.Authorize(context.Background(), process.OpBringUp, "")
		require.NoError(t, err)
		_, err = b2.ExecutePrivileged(context.Background(), ticket, tpl.BringUp("x"))
		assert.ErrorIs(t, err, ErrForeignTicket)
		assert.Empty(t, runner.calls)
	})
}

func TestBroker_Elevation(t *testing.T) {
	tpl := process.DefaultTemplates()

	tests := []struct {
		elevation string
		name      string
		args      []string
	}{
		{ElevationNone, "wg-quick", []string{"up", "/tmp/wg0.conf"}},
		{ElevationPkexec, "pkexec", []string{"wg-quick", "up", "/tmp/wg0.conf"}},
		{ElevationSudo, "sudo", []string{"-n", "wg-quick", "up", "/tmp/wg0.conf"}},
	}

	for _, tt := range tests {
		t.Run(tt.elevation, func(t *testing.T) {
			b, runner := newTestBroker(t, Granted, tt.elevation)
			ticket, err := b.Authorize(context.Background(), process.OpBringUp, "")
			require.NoError(t, err)
			_, err = b.ExecutePrivileged(context.Background(), ticket, tpl.BringUp("/tmp/wg0.conf"))
			require.NoError(t, err)

			require.Len(t, runner.calls, 1)
			assert.Equal(t, tt.name, runner.calls[0].Name)
			assert.Equal(t, tt.args, runner.calls[0].Args)
		})
	}

	_, err := NewBroker(StaticAuthority{Decision: Granted}, &recordingRunner{}, "doas", 0)
	assert.ErrorIs(t, err, ErrUnknownElevation)
}

func TestTicketIsRedacted(t *testing.T) {
	b, _ := newTestBroker(t, Granted, "")
	ticket, err := b.Authorize(context.Background(), process.OpBringUp, "")
	require.NoError(t, err)

	assert.Equal(t, "ticket(redacted)", fmt.Sprintf("%v", ticket))
	assert.Equal(t, "ticket(redacted)", fmt.Sprintf("%#v", ticket))
}

func TestDecisionFrom(t *testing.T) {
	assert.Equal(t, Granted, decisionFrom(polkitResult{IsAuthorized: true}))
	assert.Equal(t, Granted, decisionFrom(polkitResult{IsAuthorized: true, IsChallenge: true}))
	assert.Equal(t, NoService, decisionFrom(polkitResult{IsChallenge: true}))
	assert.Equal(t, Refused, decisionFrom(polkitResult{}))
}

func TestBroker_AuthorizeChallengeIsUnavailable(t *testing.T) {
	b, err := NewBroker(StaticAuthority{Decision: decisionFrom(polkitResult{IsChallenge: true})}, &recordingRunner{}, ElevationNone, 0)
	require.NoError(t, err)

	_, err = b.Authorize(context.Background(), process.OpBringUp, "")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, Unavailable, authErr.Kind)
}

func TestPolkitAuthority_NoBus(t *testing.T) {
	a := NewPolkitAuthority()
	a.connect = func() (*dbus.Conn, error) { return nil, fmt.Errorf("dial unix: no such file") }

	d, err := a.Check(context.Background(), ActionBringUp, "")
	assert.Equal(t, NoService, d)
	assert.Error(t, err)
}
