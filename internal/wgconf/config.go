package wgconf

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Canonical key spellings, used when a field has to be written fresh.
const (
	keyName                = "# Name"
	keyPrivateKey          = "PrivateKey"
	keyAddress             = "Address"
	keyListenPort          = "ListenPort"
	keyDNS                 = "DNS"
	keyMTU                 = "MTU"
	keyTable               = "Table"
	keyPreUp               = "PreUp"
	keyPostUp              = "PostUp"
	keyPreDown             = "PreDown"
	keyPostDown            = "PostDown"
	keyPublicKey           = "PublicKey"
	keyPresharedKey        = "PresharedKey"
	keyAllowedIPs          = "AllowedIPs"
	keyEndpoint            = "Endpoint"
	keyPersistentKeepalive = "PersistentKeepalive"
)

// Config is one tunnel definition: exactly one [Interface] and zero or more
// [Peer] sections. Name is the tunnel and interface name; it is not stored in
// the file itself.
type Config struct {
	Name      string
	Interface Interface
	Peers     []*Peer

	// comment and blank lines before the first section
	preamble []string
	// number of peers written before [Interface]
	ifaceAt int
}

// Interface is the [Interface] section
type Interface struct {
	// FriendlyName is carried in a "# Name = ..." comment
	FriendlyName string
	PrivateKey   string
	Address      []netip.Prefix
	// ListenPort is 0 when unset
	ListenPort int
	// DNS holds resolver IPs and search domains in file order
	DNS []string
	// MTU is 0 when unset
	MTU      int
	Table    string
	PreUp    []string
	PostUp   []string
	PreDown  []string
	PostDown []string

	section
}

// Peer is one [Peer] section
type Peer struct {
	FriendlyName string
	PublicKey    string
	PresharedKey string
	AllowedIPs   []netip.Prefix
	// Endpoint is host:port, empty when unset
	Endpoint string
	// PersistentKeepalive is in seconds, 0 means off
	PersistentKeepalive int

	section
}

// section remembers the source text of a parsed section so unknown keys,
// comments and untouched fields are written back exactly as read.
type section struct {
	header   string
	line     int
	lines    []rawLine
	snapshot map[string]string
}

type rawLine struct {
	text string
	// key is the canonical key of a recognized field, empty for comments,
	// blank lines and unknown keys
	key string
}

// field is a recognized key with the value lines it currently renders to.
// List fields like Address render to a single comma separated line, hook
// fields render one line per command.
type field struct {
	key    string
	values []string
}

func (f field) rendered() string {
	return strings.Join(f.values, "\n")
}

func (i *Interface) fields() []field {
	return []field{
		{keyName, optString(i.FriendlyName)},
		{keyAddress, joinPrefixes(i.Address)},
		{keyListenPort, optInt(i.ListenPort)},
		{keyPrivateKey, optString(i.PrivateKey)},
		{keyDNS, joinStrings(i.DNS)},
		{keyTable, optString(i.Table)},
		{keyMTU, optInt(i.MTU)},
		{keyPreUp, i.PreUp},
		{keyPostUp, i.PostUp},
		{keyPreDown, i.PreDown},
		{keyPostDown, i.PostDown},
	}
}

func (p *Peer) fields() []field {
	return []field{
		{keyName, optString(p.FriendlyName)},
		{keyPublicKey, optString(p.PublicKey)},
		{keyPresharedKey, optString(p.PresharedKey)},
		{keyAllowedIPs, joinPrefixes(p.AllowedIPs)},
		{keyEndpoint, optString(p.Endpoint)},
		{keyPersistentKeepalive, optInt(p.PersistentKeepalive)},
	}
}

// PublicKey derives the interface public key from its private key
func (i *Interface) PublicKey() (string, error) {
	key, err := wgtypes.ParseKey(i.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}
	return key.PublicKey().String(), nil
}

// Clone returns a deep copy of the config
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{
		Name:      c.Name,
		Interface: c.Interface,
		preamble:  append([]string(nil), c.preamble...),
		ifaceAt:   c.ifaceAt,
	}
	out.Interface.Address = append([]netip.Prefix(nil), c.Interface.Address...)
	out.Interface.DNS = append([]string(nil), c.Interface.DNS...)
	out.Interface.PreUp = append([]string(nil), c.Interface.PreUp...)
	out.Interface.PostUp = append([]string(nil), c.Interface.PostUp...)
	out.Interface.PreDown = append([]string(nil), c.Interface.PreDown...)
	out.Interface.PostDown = append([]string(nil), c.Interface.PostDown...)
	out.Interface.section = c.Interface.section.clone()
	for _, p := range c.Peers {
		cp := *p
		cp.AllowedIPs = append([]netip.Prefix(nil), p.AllowedIPs...)
		cp.section = p.section.clone()
		out.Peers = append(out.Peers, &cp)
	}
	return out
}

func (s section) clone() section {
	// snapshot is never written after parsing, so it can be shared
	s.lines = append([]rawLine(nil), s.lines...)
	return s
}

// PeerByPublicKey returns the peer with the given public key, or nil
func (c *Config) PeerByPublicKey(key string) *Peer {
	for _, p := range c.Peers {
		if p.PublicKey == key {
			return p
		}
	}
	return nil
}

// ClearHooks drops the PreUp, PostUp, PreDown and PostDown commands and
// reports whether there were any
func (i *Interface) ClearHooks() bool {
	had := len(i.PreUp)+len(i.PostUp)+len(i.PreDown)+len(i.PostDown) > 0
	i.PreUp, i.PostUp, i.PreDown, i.PostDown = nil, nil, nil, nil
	return had
}

// AddressStrings returns the interface addresses in CIDR notation
func (i *Interface) AddressStrings() []string {
	out := make([]string, len(i.Address))
	for n, a := range i.Address {
		out[n] = a.String()
	}
	return out
}

// String describes the config without any key material so it is safe to log
func (c *Config) String() string {
	addrs := c.Interface.AddressStrings()
	return fmt.Sprintf("%s{address=%s peers=%d}", c.Name, strings.Join(addrs, ","), len(c.Peers))
}

func optString(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func optInt(n int) []string {
	if n == 0 {
		return nil
	}
	return []string{strconv.Itoa(n)}
}

func joinStrings(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	return []string{strings.Join(list, ", ")}
}

func joinPrefixes(list []netip.Prefix) []string {
	if len(list) == 0 {
		return nil
	}
	parts := make([]string, len(list))
	for i, p := range list {
		parts[i] = p.String()
	}
	return []string{strings.Join(parts, ", ")}
}
