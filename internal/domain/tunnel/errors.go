package tunnel

import "errors"

// Request errors. They are returned synchronously and nothing has been
// changed when one is returned.
var (
	ErrNotFound        = errors.New("tunnel not found")
	ErrExists          = errors.New("tunnel already exists")
	ErrAlreadyActive   = errors.New("tunnel is already active")
	ErrAlreadyInactive = errors.New("tunnel is not active")
	ErrBusy            = errors.New("tunnel has an operation in progress")
	ErrUnmanaged       = errors.New("interface has no saved config and is read-only")
)

// Failure reasons set by status polling
const (
	ReasonVanished = "interface vanished"
	ReasonLinkDown = "interface link is down"
)
