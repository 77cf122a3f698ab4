package wgconf

import (
	"errors"
	"fmt"
	"strings"
)

// Parse reads a wg-quick style config. name is the tunnel name (normally the
// file stem) and must pass ValidateName.
//
// Keys are matched case-insensitively. Keys the parser does not know are
// kept, together with comments and blank lines, and written back in place by
// Marshal.
func Parse(name string, text []byte) (*Config, error) {
	if err := ValidateName(name); err != nil {
		return nil, invalid(0, err)
	}

	cfg := &Config{Name: name}
	var (
		current   *section
		setter    func(key, value string) (string, error)
		seenIface bool
		seenKeys  map[string]int
	)

	lines := strings.Split(string(text), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	for idx, raw := range lines {
		lineNo := idx + 1
		trimmed := strings.TrimSpace(raw)

		switch {
		case trimmed == "" || trimmed[0] == ';':
			appendRaw(cfg, current, rawLine{text: raw})
			continue

		case trimmed[0] == '#':
			rl := rawLine{text: raw}
			if value, ok := nameComment(trimmed); ok && current != nil {
				key, err := setter(keyName, value)
				if err != nil {
					return nil, invalid(lineNo, err)
				}
				rl.key = key
			}
			appendRaw(cfg, current, rl)
			continue

		case trimmed[0] == '[':
			if !strings.HasSuffix(trimmed, "]") {
				return nil, malformed(lineNo, "unmatched bracket in section header %q", trimmed)
			}
			sectionName := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			switch strings.ToLower(sectionName) {
			case "interface":
				if seenIface {
					return nil, malformed(lineNo, "duplicate [Interface] section")
				}
				seenIface = true
				cfg.ifaceAt = len(cfg.Peers)
				current = &cfg.Interface.section
				setter = cfg.Interface.set
			case "peer":
				peer := &Peer{}
				cfg.Peers = append(cfg.Peers, peer)
				current = &peer.section
				setter = peer.set
			default:
				return nil, malformed(lineNo, "unknown section [%s]", sectionName)
			}
			current.header = raw
			current.line = lineNo
			seenKeys = make(map[string]int)
			continue

		case strings.HasSuffix(trimmed, "]") && !strings.Contains(trimmed, "="):
			return nil, malformed(lineNo, "unmatched bracket %q", trimmed)
		}

		if current == nil {
			return nil, malformed(lineNo, "%q appears before any section", trimmed)
		}

		k, v, ok := strings.Cut(trimmed, "=")
		if !ok {
			return nil, malformed(lineNo, "expected key = value, got %q", trimmed)
		}
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, malformed(lineNo, "missing key in %q", trimmed)
		}
		v = stripInlineComment(v)

		key, err := setter(k, v)
		if err != nil {
			return nil, invalid(lineNo, err)
		}
		if key != "" && !repeatable(key) {
			if first, dup := seenKeys[key]; dup {
				return nil, invalid(lineNo, fmt.Errorf("%s already set on line %d", key, first))
			}
			seenKeys[key] = lineNo
		}
		current.lines = append(current.lines, rawLine{text: raw, key: key})
	}

	if !seenIface {
		return nil, malformed(0, "missing [Interface] section")
	}
	if err := cfg.checkRequired(); err != nil {
		return nil, err
	}

	cfg.Interface.snapshot = snapshotOf(cfg.Interface.fields())
	for _, p := range cfg.Peers {
		p.snapshot = snapshotOf(p.fields())
	}
	return cfg, nil
}

// checkRequired reports missing mandatory fields against the section header line
func (c *Config) checkRequired() error {
	if c.Interface.PrivateKey == "" {
		return invalid(c.Interface.line, errors.New("[Interface] has no PrivateKey"))
	}
	if len(c.Interface.Address) == 0 {
		return invalid(c.Interface.line, errors.New("[Interface] has no Address"))
	}
	seen := make(map[string]int, len(c.Peers))
	for _, p := range c.Peers {
		if p.PublicKey == "" {
			return invalid(p.line, errors.New("[Peer] has no PublicKey"))
		}
		if first, dup := seen[p.PublicKey]; dup {
			return invalid(p.line, fmt.Errorf("peer public key already used by peer on line %d", first))
		}
		seen[p.PublicKey] = p.line
	}
	return nil
}

func appendRaw(cfg *Config, current *section, rl rawLine) {
	if current == nil {
		cfg.preamble = append(cfg.preamble, rl.text)
		return
	}
	current.lines = append(current.lines, rl)
}

// nameComment recognizes the "# Name = friendly name" convention
func nameComment(trimmed string) (string, bool) {
	body := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
	k, v, ok := strings.Cut(body, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(k), "name") {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func stripInlineComment(v string) string {
	if i := strings.IndexByte(v, '#'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// repeatable keys may appear on several lines and accumulate
func repeatable(key string) bool {
	switch key {
	case keyAddress, keyDNS, keyAllowedIPs, keyPreUp, keyPostUp, keyPreDown, keyPostDown:
		return true
	}
	return false
}

func snapshotOf(fields []field) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.key] = f.rendered()
	}
	return m
}

// set applies one [Interface] key and returns its canonical spelling, or ""
// for a key that is not recognized.
func (i *Interface) set(key, value string) (string, error) {
	switch strings.ToLower(key) {
	case "# name":
		i.FriendlyName = value
		return keyName, nil
	case "privatekey":
		if err := ValidateKey(value); err != nil {
			return "", fmt.Errorf("PrivateKey: %w", err)
		}
		i.PrivateKey = value
		return keyPrivateKey, nil
	case "address":
		prefixes, err := parsePrefixes(value)
		if err != nil {
			return "", fmt.Errorf("Address: %w", err)
		}
		i.Address = append(i.Address, prefixes...)
		return keyAddress, nil
	case "listenport":
		port, err := parseListenPort(value)
		if err != nil {
			return "", fmt.Errorf("ListenPort: %w", err)
		}
		i.ListenPort = port
		return keyListenPort, nil
	case "dns":
		dns, err := parseDNS(value)
		if err != nil {
			return "", fmt.Errorf("DNS: %w", err)
		}
		i.DNS = append(i.DNS, dns...)
		return keyDNS, nil
	case "mtu":
		mtu, err := parseMTU(value)
		if err != nil {
			return "", err
		}
		i.MTU = mtu
		return keyMTU, nil
	case "table":
		i.Table = value
		return keyTable, nil
	case "preup":
		i.PreUp = append(i.PreUp, value)
		return keyPreUp, nil
	case "postup":
		i.PostUp = append(i.PostUp, value)
		return keyPostUp, nil
	case "predown":
		i.PreDown = append(i.PreDown, value)
		return keyPreDown, nil
	case "postdown":
		i.PostDown = append(i.PostDown, value)
		return keyPostDown, nil
	}
	return "", nil
}

// set applies one [Peer] key
func (p *Peer) set(key, value string) (string, error) {
	switch strings.ToLower(key) {
	case "# name":
		p.FriendlyName = value
		return keyName, nil
	case "publickey":
		if err := ValidateKey(value); err != nil {
			return "", fmt.Errorf("PublicKey: %w", err)
		}
		p.PublicKey = value
		return keyPublicKey, nil
	case "presharedkey":
		if err := ValidateKey(value); err != nil {
			return "", fmt.Errorf("PresharedKey: %w", err)
		}
		p.PresharedKey = value
		return keyPresharedKey, nil
	case "allowedips":
		prefixes, err := parsePrefixes(value)
		if err != nil {
			return "", fmt.Errorf("AllowedIPs: %w", err)
		}
		p.AllowedIPs = append(p.AllowedIPs, prefixes...)
		return keyAllowedIPs, nil
	case "endpoint":
		if err := ValidateEndpoint(value); err != nil {
			return "", fmt.Errorf("Endpoint: %w", err)
		}
		p.Endpoint = value
		return keyEndpoint, nil
	case "persistentkeepalive":
		n, err := parseKeepalive(value)
		if err != nil {
			return "", err
		}
		p.PersistentKeepalive = n
		return keyPersistentKeepalive, nil
	}
	return "", nil
}
