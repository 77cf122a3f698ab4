package wgstatus

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
)

// Dump is the parsed output of `wg show <iface> dump`
type Dump struct {
	PublicKey  string
	ListenPort int
	Peers      []tunnel.PeerStats
}

// ParseDump reads `wg show <iface> dump` output. The first line describes
// the interface:
//
//	private-key public-key listen-port fwmark
//
// and every following line one peer:
//
//	public-key preshared-key endpoint allowed-ips latest-handshake rx tx keepalive
//
// Fields are tab separated. The private and preshared keys are dropped.
func ParseDump(out []byte) (*Dump, error) {
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("empty wg dump")
	}

	iface := strings.Split(lines[0], "\t")
	if len(iface) != 4 {
		return nil, fmt.Errorf("wg dump interface line has %d fields, want 4", len(iface))
	}
	d := &Dump{PublicKey: none(iface[1])}
	if port, err := strconv.Atoi(iface[2]); err == nil {
		d.ListenPort = port
	}

	for i, line := range lines[1:] {
		if line == "" {
			continue
		}
		peer, err := parsePeerLine(line)
		if err != nil {
			return nil, fmt.Errorf("wg dump line %d: %w", i+2, err)
		}
		d.Peers = append(d.Peers, peer)
	}
	return d, nil
}

func parsePeerLine(line string) (tunnel.PeerStats, error) {
	f := strings.Split(line, "\t")
	if len(f) != 8 {
		return tunnel.PeerStats{}, fmt.Errorf("peer line has %d fields, want 8", len(f))
	}

	handshake, err := strconv.ParseInt(f[4], 10, 64)
	if err != nil {
		return tunnel.PeerStats{}, fmt.Errorf("bad latest-handshake %q", f[4])
	}
	rx, err := strconv.ParseInt(f[5], 10, 64)
	if err != nil {
		return tunnel.PeerStats{}, fmt.Errorf("bad transfer-rx %q", f[5])
	}
	tx, err := strconv.ParseInt(f[6], 10, 64)
	if err != nil {
		return tunnel.PeerStats{}, fmt.Errorf("bad transfer-tx %q", f[6])
	}

	p := tunnel.PeerStats{
		PublicKey: f[0],
		Endpoint:  none(f[2]),
		RxBytes:   rx,
		TxBytes:   tx,
	}
	if handshake > 0 {
		p.LatestHandshake = time.Unix(handshake, 0)
	}
	if ips := none(f[3]); ips != "" {
		p.AllowedIPs = strings.Split(ips, ",")
	}
	if ka := f[7]; ka != "off" && ka != "" {
		secs, err := strconv.Atoi(ka)
		if err != nil {
			return tunnel.PeerStats{}, fmt.Errorf("bad persistent-keepalive %q", ka)
		}
		p.PersistentKeepalive = time.Duration(secs) * time.Second
	}
	return p, nil
}

func none(s string) string {
	if s == "(none)" {
		return ""
	}
	return s
}

// ParseInterfaces reads `wg show interfaces`: names separated by spaces
func ParseInterfaces(out []byte) []string {
	return strings.Fields(string(out))
}
