package wgstatus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
)

// LinkState is what the kernel reports about an interface
type LinkState struct {
	Exists  bool
	Up      bool
	Running bool
	MTU     int
	Type    string
}

// Inspector reads kernel link state
type Inspector interface {
	Inspect(name string) (LinkState, error)
}

// Runner runs read-only commands
type Runner interface {
	Run(ctx context.Context, cmd process.Command) (*process.Outcome, error)
}

// Status is the live view of one interface
type Status struct {
	// Present is false when neither the kernel nor wg know the interface
	Present bool
	LinkUp  bool
	Dump    *Dump
}

// Prober answers "is this interface alive and what are its peers doing"
// from `wg show <iface> dump` plus the kernel link flags.
type Prober struct {
	runner    Runner
	inspector Inspector
	templates process.Templates
}

// NewProber creates a prober. inspector may be nil, in which case only
// the wg tool is consulted.
func NewProber(runner Runner, inspector Inspector, templates process.Templates) *Prober {
	return &Prober{runner: runner, inspector: inspector, templates: templates}
}

// Probe reports the live status of iface. An interface is only reported
// absent when the kernel or wg say so; any other wg failure is an error,
// and so is a wg failure about a link the kernel still has.
func (p *Prober) Probe(ctx context.Context, iface string) (Status, error) {
	linkUp, inKernel := true, false
	if p.inspector != nil {
		link, err := p.inspector.Inspect(iface)
		switch {
		case err != nil:
			// fall back to wg alone
		case !link.Exists:
			return Status{}, nil
		default:
			linkUp, inKernel = link.Up, true
		}
	}

	out, err := p.runner.Run(ctx, p.templates.StatusQuery(iface))
	if err != nil {
		if isNoSuchDevice(err) && !inKernel {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("failed to query %s: %w", iface, err)
	}
	if len(strings.TrimSpace(string(out.Stdout))) == 0 {
		if inKernel {
			return Status{}, fmt.Errorf("failed to query %s: wg printed no status for a live link", iface)
		}
		return Status{}, nil
	}

	dump, err := ParseDump(out.Stdout)
	if err != nil {
		return Status{}, fmt.Errorf("failed to parse status of %s: %w", iface, err)
	}
	return Status{Present: true, LinkUp: linkUp, Dump: dump}, nil
}

// linkLister is implemented by inspectors that can enumerate wireguard links
type linkLister interface {
	WireGuardLinks() ([]string, error)
}

// Interfaces lists the WireGuard interfaces currently alive. When the wg
// tool fails it falls back to asking the kernel for links of type
// wireguard.
func (p *Prober) Interfaces(ctx context.Context) ([]string, error) {
	out, err := p.runner.Run(ctx, p.templates.ShowInterfaces())
	if err != nil {
		if lister, ok := p.inspector.(linkLister); ok {
			if names, lerr := lister.WireGuardLinks(); lerr == nil {
				return names, nil
			}
		}
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	return ParseInterfaces(out.Stdout), nil
}

func isNoSuchDevice(err error) bool {
	var runErr *process.RunError
	if !errors.As(err, &runErr) || runErr.Kind != process.ExitFailure {
		return false
	}
	return strings.Contains(strings.ToLower(runErr.Stderr), "no such device")
}
