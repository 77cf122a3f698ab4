package wgconf

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

const (
	minMTU       = 576
	maxMTU       = 65535
	maxPort      = 65535
	maxKeepalive = 65535
)

// ValidateKey checks that s is standard base64 decoding to exactly 32 bytes
func ValidateKey(s string) error {
	if s == "" {
		return errors.New("key is empty")
	}
	if _, err := wgtypes.ParseKey(s); err != nil {
		return fmt.Errorf("key must be base64 encoding exactly 32 bytes: %w", err)
	}
	return nil
}

// ValidateEndpoint checks a host:port peer endpoint
func ValidateEndpoint(s string) error {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("endpoint %q is not host:port: %w", s, err)
	}
	if host == "" {
		return fmt.Errorf("endpoint %q has no host", s)
	}
	if _, err := parsePort(port); err != nil {
		return fmt.Errorf("endpoint %q: %w", s, err)
	}
	return nil
}

func parsePort(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", s)
	}
	if n < 1 || n > maxPort {
		return 0, fmt.Errorf("port %d out of range 1-%d", n, maxPort)
	}
	return n, nil
}

// parseListenPort is parsePort for ListenPort, where 0 leaves the port to
// the kernel and is kept as unset
func parseListenPort(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil && n == 0 {
		return 0, nil
	}
	return parsePort(s)
}

func parseMTU(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("MTU %q is not a number", s)
	}
	if n < minMTU || n > maxMTU {
		return 0, fmt.Errorf("MTU %d out of range %d-%d", n, minMTU, maxMTU)
	}
	return n, nil
}

func parseKeepalive(s string) (int, error) {
	if strings.EqualFold(s, "off") {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("persistent keepalive %q is not a number", s)
	}
	if n < 0 || n > maxKeepalive {
		return 0, fmt.Errorf("persistent keepalive %d out of range 0-%d", n, maxKeepalive)
	}
	return n, nil
}

// parsePrefixes reads a comma separated CIDR list. A bare address is taken
// as a single host route, the way wg-quick does.
func parsePrefixes(s string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range splitList(s) {
		if !strings.Contains(part, "/") {
			addr, err := netip.ParseAddr(part)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q", part)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q", part)
		}
		out = append(out, p)
	}
	return out, nil
}

func parseDNS(s string) ([]string, error) {
	var out []string
	for _, part := range splitList(s) {
		if _, err := netip.ParseAddr(part); err != nil && !isSearchDomain(part) {
			return nil, fmt.Errorf("invalid DNS entry %q", part)
		}
		out = append(out, part)
	}
	return out, nil
}

func isSearchDomain(s string) bool {
	if len(s) > 253 {
		return false
	}
	labels := strings.Split(s, ".")
	if _, err := strconv.Atoi(labels[len(labels)-1]); err == nil {
		// looks like a broken IP address, not a domain
		return false
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate applies every domain rule to a config built or edited in memory.
// The first violation is returned as an Invalid *ParseError.
func (c *Config) Validate() error {
	if err := ValidateName(c.Name); err != nil {
		return invalid(0, err)
	}
	if err := c.Interface.validate(); err != nil {
		return invalid(0, err)
	}
	seen := make(map[string]bool, len(c.Peers))
	for i, p := range c.Peers {
		if err := p.validate(); err != nil {
			return invalid(0, fmt.Errorf("peer %d: %w", i+1, err))
		}
		if seen[p.PublicKey] {
			return invalid(0, fmt.Errorf("peer %d: duplicate public key", i+1))
		}
		seen[p.PublicKey] = true
	}
	return nil
}

func (i *Interface) validate() error {
	if err := ValidateKey(i.PrivateKey); err != nil {
		return fmt.Errorf("PrivateKey: %w", err)
	}
	if len(i.Address) == 0 {
		return errors.New("Address: at least one address is required")
	}
	for _, a := range i.Address {
		if !a.IsValid() {
			return errors.New("Address: invalid CIDR")
		}
	}
	if i.ListenPort < 0 || i.ListenPort > maxPort {
		return fmt.Errorf("ListenPort: port %d out of range 0-%d", i.ListenPort, maxPort)
	}
	if i.MTU != 0 && (i.MTU < minMTU || i.MTU > maxMTU) {
		return fmt.Errorf("MTU: %d out of range %d-%d", i.MTU, minMTU, maxMTU)
	}
	for _, d := range i.DNS {
		if _, err := netip.ParseAddr(d); err != nil && !isSearchDomain(d) {
			return fmt.Errorf("DNS: invalid entry %q", d)
		}
	}
	return nil
}

func (p *Peer) validate() error {
	if err := ValidateKey(p.PublicKey); err != nil {
		return fmt.Errorf("PublicKey: %w", err)
	}
	if p.PresharedKey != "" {
		if err := ValidateKey(p.PresharedKey); err != nil {
			return fmt.Errorf("PresharedKey: %w", err)
		}
	}
	for _, a := range p.AllowedIPs {
		if !a.IsValid() {
			return errors.New("AllowedIPs: invalid CIDR")
		}
	}
	if p.Endpoint != "" {
		if err := ValidateEndpoint(p.Endpoint); err != nil {
			return fmt.Errorf("Endpoint: %w", err)
		}
	}
	if p.PersistentKeepalive < 0 || p.PersistentKeepalive > maxKeepalive {
		return fmt.Errorf("PersistentKeepalive: %d out of range 0-%d", p.PersistentKeepalive, maxKeepalive)
	}
	return nil
}
