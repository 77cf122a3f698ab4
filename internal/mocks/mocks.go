// Package mocks holds hand-written fakes of the application ports for tests.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/privilege"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/wgstatus"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// Keys used by test configs. Real curve25519 keys, never used anywhere else.
const (
	PrivateKey = "yAnz5TF+lXXJte14tji3zlMNq+hd2rYUIgJBgB3fBmk="
	PeerKey    = "xTIBA5rboUvnH4htodjb6e697QjLERt1NAB4mZqp8Dg="
	PeerKey2   = "TrMvSoP4jYQlY6RIzBgbssQqY3vxI2Pi+y71lOWWXX0="
)

// ConfigText is a minimal valid tunnel config with one peer
const ConfigText = "[Interface]\nPrivateKey = " + PrivateKey + "\nAddress = 10.0.0.2/24\n\n" +
	"[Peer]\nPublicKey = " + PeerKey + "\nAllowedIPs = 0.0.0.0/0\nEndpoint = 1.2.3.4:51820\n"

// NewConfig parses ConfigText under name and panics on error
func NewConfig(name string) *wgconf.Config {
	cfg, err := wgconf.Parse(name, []byte(ConfigText))
	if err != nil {
		panic(err)
	}
	return cfg
}

// FakeRunner is a ports.ProcessRunner that records calls. It is safe for
// concurrent use and tracks how many commands overlap.
type FakeRunner struct {
	RunFunc func(ctx context.Context, cmd process.Command) (*process.Outcome, error)
	// Delay is slept inside every call before RunFunc
	Delay time.Duration

	mu          sync.Mutex
	calls       []process.Command
	inFlight    int
	maxInFlight int
}

func (m *FakeRunner) Run(ctx context.Context, cmd process.Command) (*process.Outcome, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.RunFunc != nil {
		return m.RunFunc(ctx, cmd)
	}
	return &process.Outcome{}, nil
}

// Calls returns a copy of every command run so far
func (m *FakeRunner) Calls() []process.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]process.Command(nil), m.calls...)
}

// MaxInFlight returns the largest number of commands that ran at once
func (m *FakeRunner) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// FakeAuthority is a privilege.Authority with a fixed answer
type FakeAuthority struct {
	Decision privilege.Decision
	Err      error

	mu     sync.Mutex
	Checks []string
}

func (m *FakeAuthority) Check(ctx context.Context, actionID, justification string) (privilege.Decision, error) {
	m.mu.Lock()
	m.Checks = append(m.Checks, actionID)
	m.mu.Unlock()
	return m.Decision, m.Err
}

// CheckCount returns how many times the authority was asked
func (m *FakeAuthority) CheckCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Checks)
}

// MemoryRepository is a ports.TunnelRepository backed by a map of file
// contents. Configs go through the real codec on the way in and out.
type MemoryRepository struct {
	SaveFunc func(cfg *wgconf.Config) error

	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryRepository creates a repository holding the given configs
func NewMemoryRepository(configs ...*wgconf.Config) *MemoryRepository {
	m := &MemoryRepository{files: make(map[string][]byte)}
	for _, c := range configs {
		m.files[c.Name] = wgconf.Marshal(c)
	}
	return m
}

// Put stores raw file content under name, bypassing validation
func (m *MemoryRepository) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
}

// Raw returns the stored content for name
func (m *MemoryRepository) Raw(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, ok
}

func (m *MemoryRepository) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryRepository) Load(name string) (*wgconf.Config, error) {
	data, ok := m.Raw(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", tunnel.ErrNotFound, name)
	}
	return wgconf.Parse(name, data)
}

func (m *MemoryRepository) LoadAll() ([]*wgconf.Config, []ports.LoadError) {
	names, _ := m.List()
	var (
		configs []*wgconf.Config
		failed  []ports.LoadError
	)
	for _, name := range names {
		cfg, err := m.Load(name)
		if err != nil {
			failed = append(failed, ports.LoadError{Name: name, Path: m.Path(name), Err: err})
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, failed
}

func (m *MemoryRepository) Save(cfg *wgconf.Config) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(cfg); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.Put(cfg.Name, wgconf.Marshal(cfg))
	return nil
}

func (m *MemoryRepository) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("%w: %s", tunnel.ErrNotFound, name)
	}
	delete(m.files, name)
	return nil
}

func (m *MemoryRepository) Exists(name string) bool {
	_, ok := m.Raw(name)
	return ok
}

func (m *MemoryRepository) Path(name string) string {
	return "/memory/" + wgconf.FileName(name)
}

// FakeProbe is a ports.StatusProbe. Interfaces listed in Live are present
// and up; everything else is absent.
type FakeProbe struct {
	ProbeFunc func(ctx context.Context, iface string) (wgstatus.Status, error)

	mu   sync.Mutex
	live map[string]wgstatus.Status
}

// NewFakeProbe creates a probe that reports the named interfaces as live
func NewFakeProbe(live ...string) *FakeProbe {
	p := &FakeProbe{live: make(map[string]wgstatus.Status)}
	for _, name := range live {
		p.SetLive(name, nil)
	}
	return p
}

// SetLive marks iface as present with the given peers
func (m *FakeProbe) SetLive(iface string, peers []tunnel.PeerStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[iface] = wgstatus.Status{Present: true, LinkUp: true, Dump: &wgstatus.Dump{Peers: peers}}
}

// SetGone marks iface as absent
func (m *FakeProbe) SetGone(iface string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, iface)
}

func (m *FakeProbe) Probe(ctx context.Context, iface string) (wgstatus.Status, error) {
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, iface)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[iface], nil
}

func (m *FakeProbe) Interfaces(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.live))
	for name := range m.live {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RecordingExporter is a ports.Exporter that keeps what it was given
type RecordingExporter struct {
	ExportFunc func(ctx context.Context, target string, data []byte) error

	mu      sync.Mutex
	Exports map[string][]byte
}

func (m *RecordingExporter) Export(ctx context.Context, target string, data []byte) error {
	if m.ExportFunc != nil {
		if err := m.ExportFunc(ctx, target, data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Exports == nil {
		m.Exports = make(map[string][]byte)
	}
	m.Exports[target] = data
	return nil
}
