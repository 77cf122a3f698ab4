package controller

import (
	"errors"

	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
)

var (
	// ErrCancelled is returned to operations dropped from a tunnel's queue by Cancel
	ErrCancelled = errors.New("operation cancelled")
	// ErrClosed is returned once the controller has been closed
	ErrClosed = errors.New("controller is closed")
	// ErrNoExporter is returned by ExportConfig when no export target is configured
	ErrNoExporter = errors.New("no exporter configured")
)

// Request errors from the domain, re-exported for callers of the controller
var (
	ErrNotFound        = tunnel.ErrNotFound
	ErrExists          = tunnel.ErrExists
	ErrAlreadyActive   = tunnel.ErrAlreadyActive
	ErrAlreadyInactive = tunnel.ErrAlreadyInactive
	ErrBusy            = tunnel.ErrBusy
	ErrUnmanaged       = tunnel.ErrUnmanaged
)
