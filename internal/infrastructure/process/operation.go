package process

import (
	"fmt"
	"strings"
	"time"
)

// Operation is the closed set of things the engine asks the WireGuard tools
// to do. Each one maps to exactly one command template.
type Operation int

const (
	OpBringUp Operation = iota + 1
	OpBringDown
	OpStatusQuery
	OpShowInterfaces
	OpGenKey
	OpPubKey
)

func (o Operation) String() string {
	switch o {
	case OpBringUp:
		return "bring-up"
	case OpBringDown:
		return "bring-down"
	case OpStatusQuery:
		return "status-query"
	case OpShowInterfaces:
		return "show-interfaces"
	case OpGenKey:
		return "genkey"
	case OpPubKey:
		return "pubkey"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Privileged reports whether the operation changes interface state and so
// needs an authorization ticket
func (o Operation) Privileged() bool {
	return o == OpBringUp || o == OpBringDown
}

// Command is one fully built invocation. Args are passed to the binary as
// they are; nothing goes through a shell.
type Command struct {
	Op      Operation
	Name    string
	Args    []string
	Timeout time.Duration
	// Stdin is fed to the process, used for key material so it never
	// appears on a command line
	Stdin []byte
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Templates builds commands for each operation
type Templates struct {
	WG            string
	WGQuick       string
	UpTimeout     time.Duration
	DownTimeout   time.Duration
	StatusTimeout time.Duration
}

// DefaultTemplates uses wg and wg-quick from PATH
func DefaultTemplates() Templates {
	return Templates{
		WG:            "wg",
		WGQuick:       "wg-quick",
		UpTimeout:     30 * time.Second,
		DownTimeout:   30 * time.Second,
		StatusTimeout: 5 * time.Second,
	}
}

// BringUp is `wg-quick up <config-path>`
func (t Templates) BringUp(configPath string) Command {
	return Command{Op: OpBringUp, Name: t.WGQuick, Args: []string{"up", configPath}, Timeout: t.UpTimeout}
}

// BringDown is `wg-quick down <config-path>`
func (t Templates) BringDown(configPath string) Command {
	return Command{Op: OpBringDown, Name: t.WGQuick, Args: []string{"down", configPath}, Timeout: t.DownTimeout}
}

// StatusQuery is `wg show <iface> dump`
func (t Templates) StatusQuery(iface string) Command {
	return Command{Op: OpStatusQuery, Name: t.WG, Args: []string{"show", iface, "dump"}, Timeout: t.StatusTimeout}
}

// ShowInterfaces is `wg show interfaces`
func (t Templates) ShowInterfaces() Command {
	return Command{Op: OpShowInterfaces, Name: t.WG, Args: []string{"show", "interfaces"}, Timeout: t.StatusTimeout}
}

// GenKey is `wg genkey`
func (t Templates) GenKey() Command {
	return Command{Op: OpGenKey, Name: t.WG, Args: []string{"genkey"}, Timeout: t.StatusTimeout}
}

// PubKey is `wg pubkey` with the private key on stdin
func (t Templates) PubKey(privateKey string) Command {
	return Command{
		Op:      OpPubKey,
		Name:    t.WG,
		Args:    []string{"pubkey"},
		Timeout: t.StatusTimeout,
		Stdin:   []byte(privateKey + "\n"),
	}
}
