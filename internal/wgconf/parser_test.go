package wgconf

import (
	"encoding/base64"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk="
	testPeerKey    = "xTIBA5rboUvnH4htodjb6e697QjLERt1NAB4mZqp8Dg="
	testPeerKey2   = "TrMvSoP4jYQlY6RIzBgbssQqY3vxI2Pi+y71lOWWXX0="
)

func shortKey() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 31))
}

func TestParse_ExampleConfig(t *testing.T) {
	src := "[Interface]\nPrivateKey=" + testPrivateKey + "\nAddress=10.0.0.2/24\n[Peer]\nPublicKey=" +
		testPeerKey + "\nAllowedIPs=0.0.0.0/0\nEndpoint=1.2.3.4:51820"

	cfg, err := Parse("wg0", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "wg0", cfg.Name)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.2/24")}, cfg.Interface.Address)
	require.Len(t, cfg.Peers, 1)
	assert.Equal(t, testPeerKey, cfg.Peers[0].PublicKey)
	assert.Equal(t, "1.2.3.4:51820", cfg.Peers[0].Endpoint)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("0.0.0.0/0")}, cfg.Peers[0].AllowedIPs)

	assert.Equal(t, src+"\n", string(Marshal(cfg)))
}

func TestParse_RoundTripPreservesEverything(t *testing.T) {
	src := `# managed by hand
; second style of comment

[Interface]
# Name = office
privatekey = ` + testPrivateKey + `
Address = 10.0.0.1/24, fd00::1/64
Address = 10.1.0.1/24
ListenPort=51820   # inline comment
FwMark = 0x1234
DNS = 1.1.1.1, corp.example
  PostUp = iptables -A FORWARD -i %i -j ACCEPT
PostUp = ip6tables -A FORWARD -i %i -j ACCEPT

# laptop
[Peer]
PublicKey = ` + testPeerKey + `
AllowedIPs = 10.0.0.2/32
SomeFutureKey = some value
PersistentKeepalive = off

[peer]
# Name = phone
PublicKey = ` + testPeerKey2 + `
PresharedKey = ` + testPeerKey + `
AllowedIPs = 10.0.0.3/32
Endpoint = [2001:db8::1]:51820
`

	cfg, err := Parse("office", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "office", cfg.Interface.FriendlyName)
	assert.Len(t, cfg.Interface.Address, 3)
	assert.Equal(t, 51820, cfg.Interface.ListenPort)
	assert.Equal(t, []string{"1.1.1.1", "corp.example"}, cfg.Interface.DNS)
	assert.Len(t, cfg.Interface.PostUp, 2)
	require.Len(t, cfg.Peers, 2)
	assert.Equal(t, "phone", cfg.Peers[1].FriendlyName)
	assert.Equal(t, 0, cfg.Peers[0].PersistentKeepalive)

	assert.Equal(t, src, string(Marshal(cfg)))
}

func TestParse_CRLFRoundTrip(t *testing.T) {
	src := "[Interface]\r\nPrivateKey = " + testPrivateKey + "\r\nAddress = 10.0.0.1/24\r\n"

	cfg, err := Parse("wg0", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, src, string(Marshal(cfg)))
}

func TestParse_Malformed(t *testing.T) {
	iface := "[Interface]\nPrivateKey = " + testPrivateKey + "\nAddress = 10.0.0.1/24\n"

	tests := []struct {
		name string
		src  string
		line int
	}{
		{"key before section", "PrivateKey = " + testPrivateKey + "\n" + iface, 1},
		{"unmatched open bracket", "[Interface\nPrivateKey = " + testPrivateKey + "\n", 1},
		{"unmatched close bracket", iface + "Peer]\n", 4},
		{"unknown section", iface + "[Server]\n", 4},
		{"line without equals", iface + "just some words\n", 4},
		{"duplicate interface", iface + "[Interface]\n", 4},
		{"missing interface", "# nothing here\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("wg0", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "want malformed, got %v", err)
			assert.False(t, errors.Is(err, ErrInvalid))

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	head := "[Interface]\nPrivateKey = " + testPrivateKey + "\nAddress = 10.0.0.1/24\n"
	peer := "[Peer]\nPublicKey = " + testPeerKey + "\n"

	tests := []struct {
		name string
		src  string
		line int
	}{
		{"short private key", "[Interface]\nPrivateKey = " + shortKey() + "\nAddress = 10.0.0.1/24\n", 2},
		{"private key not base64", "[Interface]\nPrivateKey = not-a-key\n", 2},
		{"short public key", head + "[Peer]\nPublicKey = " + shortKey() + "\n", 5},
		{"short preshared key", head + peer + "PresharedKey = " + shortKey() + "\n", 6},
		{"port out of range", head + "ListenPort = 70000\n", 4},
		{"port not a number", head + "ListenPort = http\n", 4},
		{"port negative", head + "ListenPort = -1\n", 4},
		{"bad address cidr", "[Interface]\nPrivateKey = " + testPrivateKey + "\nAddress = 10.0.0.300/24\n", 3},
		{"bad allowed ips", head + peer + "AllowedIPs = 10.0.0.0/33\n", 6},
		{"endpoint without port", head + peer + "Endpoint = vpn.example.com\n", 6},
		{"endpoint port zero", head + peer + "Endpoint = vpn.example.com:0\n", 6},
		{"mtu too small", head + "MTU = 10\n", 4},
		{"keepalive negative", head + peer + "PersistentKeepalive = -1\n", 6},
		{"bad dns", head + "DNS = 1.2.3.999\n", 4},
		{"duplicate listen port", head + "ListenPort = 1\nListenPort = 2\n", 5},
		{"missing private key", "[Interface]\nAddress = 10.0.0.1/24\n", 1},
		{"missing address", "[Interface]\nPrivateKey = " + testPrivateKey + "\n", 1},
		{"peer without public key", head + "[Peer]\nAllowedIPs = 10.0.0.2/32\n", 4},
		{"duplicate peer", head + peer + peer, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("wg0", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "want invalid, got %v", err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, Invalid, pe.Kind)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestParse_InvalidName(t *testing.T) {
	src := "[Interface]\nPrivateKey = " + testPrivateKey + "\nAddress = 10.0.0.1/24\n"

	_, err := Parse("this-name-is-far-too-long", []byte(src))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.True(t, errors.Is(err, ErrInvalidName))
}

func TestParse_CaseInsensitiveKeys(t *testing.T) {
	src := "[Interface]\nPRIVATEKEY = " + testPrivateKey + "\naddress = 10.0.0.1/24\nlistenport = 51000\n"

	cfg, err := Parse("wg0", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, testPrivateKey, cfg.Interface.PrivateKey)
	assert.Equal(t, 51000, cfg.Interface.ListenPort)
}

func TestParse_ListenPortZeroIsUnset(t *testing.T) {
	src := "[Interface]\nPrivateKey = " + testPrivateKey + "\nAddress = 10.0.0.1/24\nListenPort = 0\n"

	cfg, err := Parse("wg0", []byte(src))
	require.NoError(t, err)
	assert.Zero(t, cfg.Interface.ListenPort)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, src, string(Marshal(cfg)))
}

func TestParse_BareAddressIsHostRoute(t *testing.T) {
	src := "[Interface]\nPrivateKey = " + testPrivateKey + "\nAddress = 10.0.0.1, fd00::1\n"

	cfg, err := Parse("wg0", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.1/32"),
		netip.MustParsePrefix("fd00::1/128"),
	}, cfg.Interface.Address)
}

func TestParse_PeersKeepFileOrder(t *testing.T) {
	src := "[Interface]\nPrivateKey = " + testPrivateKey + "\nAddress = 10.0.0.1/24\n" +
		"[Peer]\nPublicKey = " + testPeerKey2 + "\n" +
		"[Peer]\nPublicKey = " + testPeerKey + "\n"

	cfg, err := Parse("wg0", []byte(src))
	require.NoError(t, err)
	require.Len(t, cfg.Peers, 2)
	assert.Equal(t, testPeerKey2, cfg.Peers[0].PublicKey)
	assert.Equal(t, testPeerKey, cfg.Peers[1].PublicKey)
	assert.Same(t, cfg.Peers[1], cfg.PeerByPublicKey(testPeerKey))
	assert.Nil(t, cfg.PeerByPublicKey(testPrivateKey))
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"wg0", true},
		{"office_vpn-2", true},
		{"abcdefghijklmno", true},
		{"abcdefghijklmnop", false},
		{"", false},
		{"wg 0", false},
		{"wg0.conf", false},
		{"../etc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidName)
			}
		})
	}
}

func TestNameFromPath(t *testing.T) {
	assert.Equal(t, "wg0", NameFromPath("/etc/wireguard/configs/wg0.conf"))
	assert.Equal(t, "office", NameFromPath("office.conf"))
	assert.Equal(t, "wg0.conf", FileName("wg0"))
}
