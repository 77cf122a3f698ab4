package privilege

import (
	"sync/atomic"
	"time"

	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
)

// Ticket is proof that one privileged operation was authorized. It is
// consumed by the first ExecutePrivileged call that presents it and is
// useless afterwards. Tickets are never stored and print as redacted.
type Ticket struct {
	op      process.Operation
	issuer  *Broker
	expires time.Time
	used    atomic.Bool
}

// Operation returns the operation the ticket was issued for
func (t *Ticket) Operation() process.Operation {
	return t.op
}

// Used reports whether the ticket was already presented
func (t *Ticket) Used() bool {
	return t.used.Load()
}

func (t *Ticket) String() string {
	return "ticket(redacted)"
}

func (t *Ticket) GoString() string {
	return t.String()
}

// consume marks the ticket used and reports whether this call was the first
func (t *Ticket) consume() bool {
	return t.used.CompareAndSwap(false, true)
}
