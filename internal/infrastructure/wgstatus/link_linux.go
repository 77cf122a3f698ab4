//go:build linux

package wgstatus

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// NetlinkInspector reads interface flags over rtnetlink
type NetlinkInspector struct{}

// NewNetlinkInspector creates a new inspector
func NewNetlinkInspector() *NetlinkInspector {
	return &NetlinkInspector{}
}

// Inspect returns the link state of name. A missing link is not an error.
func (n *NetlinkInspector) Inspect(name string) (LinkState, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return LinkState{}, nil
		}
		return LinkState{}, fmt.Errorf("failed to look up link %s: %w", name, err)
	}

	attrs := link.Attrs()
	return LinkState{
		Exists:  true,
		Up:      attrs.Flags&net.FlagUp != 0,
		Running: attrs.RawFlags&unix.IFF_RUNNING != 0,
		MTU:     attrs.MTU,
		Type:    link.Type(),
	}, nil
}

// WireGuardLinks lists the names of all links of type wireguard
func (n *NetlinkInspector) WireGuardLinks() ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	var names []string
	for _, l := range links {
		if l.Type() == "wireguard" {
			names = append(names, l.Attrs().Name)
		}
	}
	return names, nil
}
