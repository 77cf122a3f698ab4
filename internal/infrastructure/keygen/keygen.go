// Package keygen creates key pairs with the wg tool and builds host and
// client configs for a new tunnel.
package keygen

import (
	"context"
	"fmt"
	"strings"

	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// Runner runs the wg key commands
type Runner interface {
	Run(ctx context.Context, cmd process.Command) (*process.Outcome, error)
}

// KeyPair is a private key and the public key derived from it
type KeyPair struct {
	Private string
	Public  string
}

// KeySource produces key pairs with `wg genkey` and `wg pubkey`
type KeySource struct {
	runner    Runner
	templates process.Templates
}

// NewKeySource creates a key source
func NewKeySource(runner Runner, templates process.Templates) *KeySource {
	return &KeySource{runner: runner, templates: templates}
}

// KeyPair generates a private key and derives its public key. The private
// key is passed to wg pubkey on stdin.
func (k *KeySource) KeyPair(ctx context.Context) (KeyPair, error) {
	out, err := k.runner.Run(ctx, k.templates.GenKey())
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate private key: %w", err)
	}
	priv := strings.TrimSpace(string(out.Stdout))
	if err := wgconf.ValidateKey(priv); err != nil {
		return KeyPair{}, fmt.Errorf("wg genkey returned an unusable key: %w", err)
	}

	out, err = k.runner.Run(ctx, k.templates.PubKey(priv))
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to derive public key: %w", err)
	}
	pub := strings.TrimSpace(string(out.Stdout))
	if err := wgconf.ValidateKey(pub); err != nil {
		return KeyPair{}, fmt.Errorf("wg pubkey returned an unusable key: %w", err)
	}
	return KeyPair{Private: priv, Public: pub}, nil
}
