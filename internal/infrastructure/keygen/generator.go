package keygen

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/sync/errgroup"

	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

const (
	DefaultListenPort = 51820
	MaxClients        = 255
	keyWorkers        = 4
)

// Settings describe a host tunnel and the clients that connect to it
type Settings struct {
	// Name is the host tunnel; clients are named <Name>-<n>
	Name string
	// CIDR is the tunnel network. The host takes the first usable address
	// and each client the next one.
	CIDR       netip.Prefix
	ListenPort int
	Clients    int
	// ClientAllowedIPs is what each client routes through the host
	ClientAllowedIPs []netip.Prefix
	// Endpoint is the host:port clients dial, optional
	Endpoint string
	PostUp   string
	PostDown string
}

// Validate checks the settings before any key is generated
func (s *Settings) Validate() error {
	if err := wgconf.ValidateName(s.Name); err != nil {
		return err
	}
	if s.Clients < 1 || s.Clients > MaxClients {
		return fmt.Errorf("number of clients must be between 1 and %d", MaxClients)
	}
	if err := wgconf.ValidateName(ClientName(s.Name, s.Clients)); err != nil {
		return fmt.Errorf("client names derived from %q are too long: %w", s.Name, err)
	}
	if s.ListenPort < 1 || s.ListenPort > 65535 {
		return fmt.Errorf("listen port %d out of range 1-65535", s.ListenPort)
	}
	if !s.CIDR.IsValid() {
		return errors.New("CIDR is required")
	}
	if len(s.ClientAllowedIPs) == 0 {
		return errors.New("at least one client allowed IP is required")
	}
	if s.Endpoint != "" {
		if err := wgconf.ValidateEndpoint(s.Endpoint); err != nil {
			return err
		}
	}
	if _, err := hostAddresses(s.CIDR, s.Clients+1); err != nil {
		return err
	}
	return nil
}

// ClientName is the tunnel name of the n-th client, counting from 1
func ClientName(host string, n int) string {
	return fmt.Sprintf("%s-%d", host, n)
}

// Generator builds a host config and its client configs
type Generator struct {
	keys interface {
		KeyPair(ctx context.Context) (KeyPair, error)
	}
}

// NewGenerator creates a generator drawing keys from source
func NewGenerator(source *KeySource) *Generator {
	return &Generator{keys: source}
}

// Generate returns the host config first, followed by one config per client.
// Nothing is written; every config is validated before it is returned.
func (g *Generator) Generate(ctx context.Context, s Settings) ([]*wgconf.Config, error) {
	if s.ListenPort == 0 {
		s.ListenPort = DefaultListenPort
	}
	if s.Clients == 0 {
		s.Clients = 1
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", wgconf.ErrInvalid, err)
	}

	addrs, _ := hostAddresses(s.CIDR, s.Clients+1)

	pairs := make([]KeyPair, s.Clients+1)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(keyWorkers)
	for i := range pairs {
		eg.Go(func() error {
			kp, err := g.keys.KeyPair(egCtx)
			if err != nil {
				return err
			}
			pairs[i] = kp
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	host := &wgconf.Config{Name: s.Name}
	host.Interface.PrivateKey = pairs[0].Private
	host.Interface.Address = []netip.Prefix{netip.PrefixFrom(addrs[0], s.CIDR.Bits())}
	host.Interface.ListenPort = s.ListenPort
	if s.PostUp != "" {
		host.Interface.PostUp = []string{s.PostUp}
	}
	if s.PostDown != "" {
		host.Interface.PostDown = []string{s.PostDown}
	}

	configs := []*wgconf.Config{host}
	for n := 1; n <= s.Clients; n++ {
		addr := addrs[n]
		client := &wgconf.Config{Name: ClientName(s.Name, n)}
		client.Interface.PrivateKey = pairs[n].Private
		client.Interface.Address = []netip.Prefix{netip.PrefixFrom(addr, s.CIDR.Bits())}
		client.Interface.ListenPort = s.ListenPort
		client.Peers = []*wgconf.Peer{{
			FriendlyName: s.Name,
			PublicKey:    pairs[0].Public,
			AllowedIPs:   append([]netip.Prefix(nil), s.ClientAllowedIPs...),
			Endpoint:     s.Endpoint,
		}}
		configs = append(configs, client)

		host.Peers = append(host.Peers, &wgconf.Peer{
			FriendlyName: client.Name,
			PublicKey:    pairs[n].Public,
			AllowedIPs:   []netip.Prefix{netip.PrefixFrom(addr, addr.BitLen())},
		})
	}

	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("generated config %s is invalid: %w", cfg.Name, err)
		}
	}
	return configs, nil
}

// hostAddresses returns the first n usable addresses of prefix, skipping
// the network address and, for IPv4, the broadcast address.
func hostAddresses(prefix netip.Prefix, n int) ([]netip.Addr, error) {
	p := prefix.Masked()
	addr := p.Addr()
	if p.Bits() < addr.BitLen()-1 {
		addr = addr.Next()
	}
	last := lastAddr(p)

	out := make([]netip.Addr, 0, n)
	for len(out) < n {
		if !addr.IsValid() || !p.Contains(addr) || (addr.Is4() && p.Bits() < 31 && addr == last) {
			return nil, fmt.Errorf("%s has room for %d addresses, %d needed", prefix, len(out), n)
		}
		out = append(out, addr)
		addr = addr.Next()
	}
	return out, nil
}

func lastAddr(p netip.Prefix) netip.Addr {
	b := p.Addr().AsSlice()
	for i := range b {
		netBits := p.Bits() - i*8
		switch {
		case netBits <= 0:
			b[i] = 0xff
		case netBits < 8:
			b[i] |= 0xff >> netBits
		}
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}
