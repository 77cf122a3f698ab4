// Package controller owns the runtime state of every tunnel.
//
// A single goroutine owns the state map and applies every change to it.
// Requests are queued per tunnel and run one at a time, in order; the slow
// parts (authorization, wg-quick, status queries) run on worker goroutines
// that report back to the owner when they finish. Readers get Snapshot
// copies and never share memory with the owner.
package controller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/vivekkundariya/wgtunnel/internal/application/ports"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/infrastructure/process"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

// DefaultPollInterval is how often an up tunnel's status is refreshed
const DefaultPollInterval = 5 * time.Second

const subscriberBuffer = 64

// Options wires a controller to its collaborators. Watcher and Exporter are
// optional.
type Options struct {
	Repository   ports.TunnelRepository
	Watcher      ports.ConfigWatcher
	Broker       ports.PrivilegeBroker
	Probe        ports.StatusProbe
	Exporter     ports.Exporter
	Templates    process.Templates
	PollInterval time.Duration
}

var _ ports.TunnelService = (*Controller)(nil)

// Controller implements ports.TunnelService
type Controller struct {
	repo         ports.TunnelRepository
	watcher      ports.ConfigWatcher
	broker       ports.PrivilegeBroker
	probe        ports.StatusProbe
	exporter     ports.Exporter
	templates    process.Templates
	pollInterval time.Duration

	msgs      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	workers   conc.WaitGroup
	cron      *cron.Cron
	stopWatch context.CancelFunc

	// owned by the loop goroutine
	tunnels map[string]*entry
	lanes   map[string]*lane
	subs    map[int]chan tunnel.Event
	nextSub int
	closed  bool
}

// entry is the owner's record of one tunnel
type entry struct {
	name    string
	managed bool
	cfg     *wgconf.Config
	state   tunnel.State
	updated time.Time
	polling bool
	pollID  cron.EntryID
}

// New creates a controller and starts its owner goroutine. Call Start to
// load the configs directory.
func New(opts Options) (*Controller, error) {
	if opts.Repository == nil || opts.Broker == nil || opts.Probe == nil {
		return nil, fmt.Errorf("controller needs a repository, a privilege broker and a status probe")
	}
	if opts.Templates.WGQuick == "" {
		opts.Templates = process.DefaultTemplates()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	c := &Controller{
		repo:         opts.Repository,
		watcher:      opts.Watcher,
		broker:       opts.Broker,
		probe:        opts.Probe,
		exporter:     opts.Exporter,
		templates:    opts.Templates,
		pollInterval: opts.PollInterval,
		msgs:         make(chan func()),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		cron:         cron.New(),
		tunnels:      make(map[string]*entry),
		lanes:        make(map[string]*lane),
		subs:         make(map[int]chan tunnel.Event),
	}
	go c.loop()
	c.cron.Start()
	return c, nil
}

// Start loads every config as a down tunnel, adopts interfaces that are
// already live and starts following the configs directory when a watcher
// is configured. Configs that fail to load are returned and published as
// load-failed events; they do not stop the others.
func (c *Controller) Start(ctx context.Context) ([]ports.LoadError, error) {
	configs, failed := c.repo.LoadAll()

	ok := c.query(func() {
		for _, cfg := range configs {
			if _, exists := c.tunnels[cfg.Name]; exists {
				continue
			}
			e := &entry{name: cfg.Name, managed: true, cfg: cfg, state: tunnel.Down(), updated: time.Now()}
			c.tunnels[cfg.Name] = e
			c.publish(tunnel.EventAdded, e, "", nil)
		}
		for _, lf := range failed {
			c.publishLoadFailed(lf.Name, lf)
		}
	})
	if !ok {
		return nil, ErrClosed
	}
	for _, lf := range failed {
		logging.WithTunnel(lf.Name).WithError(lf.Err).Warn("failed to load config")
	}

	if err := c.Reconcile(ctx); err != nil {
		logging.Warnf("Initial reconcile failed: %v", err)
	}

	if c.watcher != nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		changes, err := c.watcher.Watch(watchCtx)
		if err != nil {
			cancel()
			return failed, fmt.Errorf("failed to watch configs: %w", err)
		}
		c.stopWatch = cancel
		c.workers.Go(func() { c.follow(changes) })
	}
	return failed, nil
}

// Close stops polling and watching, fails queued operations with ErrClosed,
// waits for in-flight operations to finish and closes every subscription.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		<-c.cron.Stop().Done()
		if c.stopWatch != nil {
			c.stopWatch()
		}
		c.query(func() {
			c.closed = true
			for _, l := range c.lanes {
				l.drop(ErrClosed)
			}
		})
		c.workers.Wait()
		close(c.quit)
		<-c.done
	})
	return nil
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.msgs:
			fn()
		case <-c.quit:
			for id, ch := range c.subs {
				close(ch)
				delete(c.subs, id)
			}
			return
		}
	}
}

// send hands fn to the owner goroutine. It reports false once the owner
// has exited.
func (c *Controller) send(fn func()) bool {
	select {
	case c.msgs <- fn:
		return true
	case <-c.done:
		return false
	}
}

// query runs fn on the owner goroutine and waits for it
func (c *Controller) query(fn func()) bool {
	ack := make(chan struct{})
	if !c.send(func() {
		defer close(ack)
		fn()
	}) {
		return false
	}
	<-ack
	return true
}

// ListTunnels returns a snapshot of every tunnel, managed or not, sorted by name
func (c *Controller) ListTunnels() []tunnel.Snapshot {
	var out []tunnel.Snapshot
	c.query(func() {
		out = make([]tunnel.Snapshot, 0, len(c.tunnels))
		for _, e := range c.tunnels {
			out = append(out, e.snapshot())
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetState returns the snapshot of one tunnel
func (c *Controller) GetState(name string) (tunnel.Snapshot, error) {
	var (
		snap  tunnel.Snapshot
		found bool
	)
	if !c.query(func() {
		if e, ok := c.tunnels[name]; ok {
			snap, found = e.snapshot(), true
		}
	}) {
		return tunnel.Snapshot{}, ErrClosed
	}
	if !found {
		return tunnel.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return snap, nil
}

// Config returns a fresh parse of a tunnel's saved config
func (c *Controller) Config(name string) (*wgconf.Config, error) {
	return c.repo.Load(name)
}

// Subscribe returns a channel receiving every event from now on and a
// function ending the subscription. Events are dropped for a subscriber
// whose buffer is full.
func (c *Controller) Subscribe() (<-chan tunnel.Event, func()) {
	ch := make(chan tunnel.Event, subscriberBuffer)
	var id int
	if !c.query(func() {
		c.nextSub++
		id = c.nextSub
		c.subs[id] = ch
	}) {
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.send(func() {
				if sub, ok := c.subs[id]; ok {
					delete(c.subs, id)
					close(sub)
				}
			})
		})
	}
}

func (c *Controller) publish(typ tunnel.EventType, e *entry, previous tunnel.Kind, err error) {
	c.broadcast(tunnel.Event{
		ID:       xid.New().String(),
		Type:     typ,
		Tunnel:   e.name,
		Previous: previous,
		Snapshot: e.snapshot(),
		Err:      err,
		Time:     time.Now(),
	})
}

func (c *Controller) publishLoadFailed(name string, err error) {
	c.broadcast(tunnel.Event{
		ID:     xid.New().String(),
		Type:   tunnel.EventLoadFailed,
		Tunnel: name,
		Err:    err,
		Time:   time.Now(),
	})
}

func (c *Controller) broadcast(ev tunnel.Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			logging.WithFields(logrus.Fields{"tunnel": ev.Tunnel, "event": ev.Type}).Warn("subscriber is not keeping up, event dropped")
		}
	}
}

// setState moves e to next if the state machine allows it and publishes the
// change. Refreshing an up tunnel keeps its Since and publishes stats.
func (c *Controller) setState(e *entry, next tunnel.State) bool {
	prev := e.state.Kind
	if !tunnel.CanTransition(prev, next.Kind) {
		logging.WithTunnel(e.name).Errorf("refusing transition %s -> %s", prev, next.Kind)
		return false
	}
	if prev == next.Kind {
		next.Since = e.state.Since
	} else if next.Since.IsZero() {
		next.Since = time.Now()
	}
	e.state = next
	e.updated = time.Now()
	c.syncPolling(e)

	if prev == next.Kind {
		c.publish(tunnel.EventStatsUpdated, e, prev, nil)
		return true
	}
	logging.WithFields(logrus.Fields{"tunnel": e.name, "state": next.String()}).Infof("%s -> %s", prev, next.Kind)
	c.publish(tunnel.EventStateChanged, e, prev, nil)
	return true
}

// syncPolling schedules status polls while e is up and removes them otherwise
func (c *Controller) syncPolling(e *entry) {
	switch {
	case e.state.Kind == tunnel.KindUp && e.managed && !e.polling:
		name := e.name
		e.pollID = c.cron.Schedule(cron.Every(c.pollInterval), cron.FuncJob(func() {
			c.submit(context.Background(), opPoll, name, nil)
		}))
		e.polling = true
	case e.state.Kind != tunnel.KindUp && e.polling:
		c.stopPolling(e)
	}
}

func (c *Controller) stopPolling(e *entry) {
	if e.polling {
		c.cron.Remove(e.pollID)
		e.polling = false
	}
}

func (e *entry) snapshot() tunnel.Snapshot {
	s := tunnel.Snapshot{
		Name:      e.name,
		Managed:   e.managed,
		State:     e.state.Clone(),
		UpdatedAt: e.updated,
	}
	if e.cfg != nil {
		s.FriendlyName = e.cfg.Interface.FriendlyName
		s.Address = e.cfg.Interface.AddressStrings()
		s.Peers = len(e.cfg.Peers)
		if pub, err := e.cfg.Interface.PublicKey(); err == nil {
			s.PublicKey = pub
		}
	}
	return s
}
