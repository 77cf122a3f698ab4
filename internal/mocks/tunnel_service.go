package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// FakeTunnelService is a ports.TunnelService over a map of snapshots.
// Bring-up and bring-down flip the state directly unless UpErr or DownErr
// name an error for the tunnel.
type FakeTunnelService struct {
	UpErr     map[string]error
	DownErr   map[string]error
	ImportErr error
	ExportErr error
	// Hold blocks BringUp and BringUpAsync until it is closed
	Hold chan struct{}

	mu        sync.Mutex
	tunnels   map[string]tunnel.Snapshot
	configs   map[string]*wgconf.Config
	calls     []string
	cancelled []string
	events    chan tunnel.Event
}

// NewFakeTunnelService creates a service knowing the given tunnels, all down
func NewFakeTunnelService(names ...string) *FakeTunnelService {
	f := &FakeTunnelService{
		tunnels: make(map[string]tunnel.Snapshot),
		configs: make(map[string]*wgconf.Config),
		events:  make(chan tunnel.Event, 16),
	}
	for _, name := range names {
		f.configs[name] = NewConfig(name)
		f.tunnels[name] = tunnel.Snapshot{Name: name, Managed: true, State: tunnel.Down()}
	}
	return f
}

// SetState overrides the state of a tunnel
func (f *FakeTunnelService) SetState(name string, state tunnel.State, managed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tunnels[name] = tunnel.Snapshot{Name: name, Managed: managed, State: state}
}

// Calls returns the operations made so far as "op name" strings
func (f *FakeTunnelService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Cancelled returns the tunnels Cancel was called for
func (f *FakeTunnelService) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

// Emit queues an event for subscribers
func (f *FakeTunnelService) Emit(ev tunnel.Event) {
	f.events <- ev
}

// CloseEvents ends the subscription channel
func (f *FakeTunnelService) CloseEvents() {
	close(f.events)
}

func (f *FakeTunnelService) record(op, name string) {
	f.mu.Lock()
	f.calls = append(f.calls, op+" "+name)
	f.mu.Unlock()
}

func (f *FakeTunnelService) ListTunnels() []tunnel.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tunnel.Snapshot, 0, len(f.tunnels))
	for _, s := range f.tunnels {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *FakeTunnelService) GetState(name string) (tunnel.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.tunnels[name]
	if !ok {
		return tunnel.Snapshot{}, fmt.Errorf("%w: %s", tunnel.ErrNotFound, name)
	}
	return s, nil
}

func (f *FakeTunnelService) Config(name string) (*wgconf.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tunnel.ErrNotFound, name)
	}
	return cfg.Clone(), nil
}

func (f *FakeTunnelService) BringUp(ctx context.Context, name string) error {
	f.record("up", name)
	if f.Hold != nil {
		select {
		case <-f.Hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.transition(name, f.UpErr, tunnel.KindUp)
}

func (f *FakeTunnelService) BringDown(ctx context.Context, name string) error {
	f.record("down", name)
	return f.transition(name, f.DownErr, tunnel.KindDown)
}

func (f *FakeTunnelService) transition(name string, errs map[string]error, to tunnel.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.tunnels[name]
	if !ok {
		return fmt.Errorf("%w: %s", tunnel.ErrNotFound, name)
	}
	if err := errs[name]; err != nil {
		s.State = tunnel.Failed(err.Error())
		f.tunnels[name] = s
		return err
	}
	s.State = tunnel.State{Kind: to}
	f.tunnels[name] = s
	return nil
}

func (f *FakeTunnelService) BringUpAsync(name string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- f.BringUp(context.Background(), name) }()
	return done
}

func (f *FakeTunnelService) SaveConfig(ctx context.Context, name string, cfg *wgconf.Config) error {
	f.record("save", name)
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[name] = cfg.Clone()
	if _, ok := f.tunnels[name]; !ok {
		f.tunnels[name] = tunnel.Snapshot{Name: name, Managed: true, State: tunnel.Down()}
	}
	return nil
}

func (f *FakeTunnelService) DeleteConfig(ctx context.Context, name string) error {
	f.record("delete", name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.configs[name]; !ok {
		return fmt.Errorf("%w: %s", tunnel.ErrNotFound, name)
	}
	delete(f.configs, name)
	delete(f.tunnels, name)
	return nil
}

func (f *FakeTunnelService) ImportConfig(ctx context.Context, path string) (string, error) {
	f.record("import", path)
	if f.ImportErr != nil {
		return "", f.ImportErr
	}
	name := wgconf.NameFromPath(path)
	return name, f.SaveConfig(ctx, name, NewConfig(name))
}

func (f *FakeTunnelService) ExportConfig(ctx context.Context, name, target string) error {
	f.record("export", name+" "+target)
	if f.ExportErr != nil {
		return f.ExportErr
	}
	_, err := f.Config(name)
	return err
}

func (f *FakeTunnelService) PollStatus(ctx context.Context, name string) error {
	f.record("poll", name)
	_, err := f.GetState(name)
	return err
}

func (f *FakeTunnelService) Reconcile(ctx context.Context) error {
	f.record("reconcile", "")
	return nil
}

func (f *FakeTunnelService) Cancel(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, name)
}

func (f *FakeTunnelService) Subscribe() (<-chan tunnel.Event, func()) {
	return f.events, func() {}
}
