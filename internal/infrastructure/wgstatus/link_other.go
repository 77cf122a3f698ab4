//go:build !linux

package wgstatus

import "errors"

var errNoNetlink = errors.New("link inspection needs netlink (linux only)")

// NetlinkInspector is unavailable off Linux
type NetlinkInspector struct{}

// NewNetlinkInspector creates a new inspector
func NewNetlinkInspector() *NetlinkInspector {
	return &NetlinkInspector{}
}

// Inspect always fails off Linux
func (n *NetlinkInspector) Inspect(name string) (LinkState, error) {
	return LinkState{}, errNoNetlink
}

// WireGuardLinks always fails off Linux
func (n *NetlinkInspector) WireGuardLinks() ([]string, error) {
	return nil, errNoNetlink
}
