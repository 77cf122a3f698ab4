package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/vivekkundariya/wgtunnel/internal/domain/tunnel"
	"github.com/vivekkundariya/wgtunnel/internal/logging"
	"github.com/vivekkundariya/wgtunnel/internal/wgconf"
)

type opKind int

const (
	opBringUp opKind = iota
	opBringDown
	opPoll
	opSave
	opCreate
	opDelete
	opReload
	opForget
)

func (k opKind) String() string {
	switch k {
	case opBringUp:
		return "bring-up"
	case opBringDown:
		return "bring-down"
	case opPoll:
		return "poll"
	case opSave:
		return "save"
	case opCreate:
		return "create"
	case opDelete:
		return "delete"
	case opReload:
		return "reload"
	case opForget:
		return "forget"
	default:
		return "unknown"
	}
}

// op is one queued request against a tunnel
type op struct {
	id   string
	kind opKind
	name string
	ctx  context.Context
	cfg  *wgconf.Config
	done chan error
}

func (o *op) resolve(err error) {
	o.done <- err
}

func (o *op) log() *logrus.Entry {
	return logging.WithFields(logrus.Fields{"tunnel": o.name, "op": o.kind.String(), "op_id": o.id})
}

// lane is the FIFO of operations for one tunnel. At most one runs at a time.
type lane struct {
	queue     []*op
	running   *op
	cancelled bool
}

func (l *lane) drop(err error) {
	for _, o := range l.queue {
		o.resolve(err)
	}
	l.queue = nil
}

// result is what a worker reports back to the owner
type result struct {
	err error
	// state is applied when set
	state *tunnel.State
	// cfg replaces the cached config when set
	cfg     *wgconf.Config
	removed bool
	// reload marks a forget that found the config still on disk
	reload bool
}

// job runs on a worker goroutine. It must not touch owner state.
type job func() result

// BringUp brings a tunnel up and waits for the outcome
func (c *Controller) BringUp(ctx context.Context, name string) error {
	return wait(ctx, c.submit(ctx, opBringUp, name, nil))
}

// BringUpAsync queues a bring-up and returns a channel receiving its outcome
func (c *Controller) BringUpAsync(name string) <-chan error {
	return c.submit(context.Background(), opBringUp, name, nil).done
}

// BringDown tears a tunnel down and waits for the outcome
func (c *Controller) BringDown(ctx context.Context, name string) error {
	return wait(ctx, c.submit(ctx, opBringDown, name, nil))
}

// PollStatus refreshes the peer statistics of an up tunnel. It does nothing
// for tunnels in any other state.
func (c *Controller) PollStatus(ctx context.Context, name string) error {
	return wait(ctx, c.submit(ctx, opPoll, name, nil))
}

// SaveConfig validates cfg and writes it as the config of name. Tunnels
// that are up or mid-transition must be brought down first.
func (c *Controller) SaveConfig(ctx context.Context, name string, cfg *wgconf.Config) error {
	if err := wgconf.ValidateName(name); err != nil {
		return err
	}
	cfg = cfg.Clone()
	cfg.Name = name
	if err := cfg.Validate(); err != nil {
		return err
	}
	return wait(ctx, c.submit(ctx, opSave, name, cfg))
}

// DeleteConfig removes a tunnel's config, bringing the interface down first
// when it is live
func (c *Controller) DeleteConfig(ctx context.Context, name string) error {
	if err := wgconf.ValidateName(name); err != nil {
		return err
	}
	return wait(ctx, c.submit(ctx, opDelete, name, nil))
}

// Cancel drops the queued operations of a tunnel with ErrCancelled. An
// operation already running is left alone; the drop happens when it
// finishes.
func (c *Controller) Cancel(name string) {
	c.send(func() {
		l, ok := c.lanes[name]
		if !ok {
			return
		}
		if l.running != nil {
			l.cancelled = true
			return
		}
		l.drop(ErrCancelled)
		delete(c.lanes, name)
	})
}

func wait(ctx context.Context, o *op) error {
	select {
	case err := <-o.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) submit(ctx context.Context, kind opKind, name string, cfg *wgconf.Config) *op {
	o := &op{
		id:   xid.New().String(),
		kind: kind,
		name: name,
		ctx:  ctx,
		cfg:  cfg,
		done: make(chan error, 1),
	}
	if !c.send(func() { c.enqueue(o) }) {
		o.resolve(ErrClosed)
	}
	return o
}

func (c *Controller) enqueue(o *op) {
	if c.closed {
		o.resolve(ErrClosed)
		return
	}
	l, ok := c.lanes[o.name]
	if !ok {
		l = &lane{}
		c.lanes[o.name] = l
	}
	l.queue = append(l.queue, o)
	c.pump(o.name)
}

// pump starts the next runnable operation of a tunnel. Preconditions are
// checked here, against the state left by everything queued before.
func (c *Controller) pump(name string) {
	l, ok := c.lanes[name]
	if !ok {
		return
	}
	for l.running == nil && len(l.queue) > 0 {
		o := l.queue[0]
		l.queue = l.queue[1:]

		if err := o.ctx.Err(); err != nil {
			o.resolve(err)
			continue
		}
		run, err := c.prepare(o)
		if err != nil {
			o.log().Debugf("rejected: %v", err)
			o.resolve(err)
			continue
		}
		if run == nil {
			o.resolve(nil)
			continue
		}

		l.running = o
		c.workers.Go(func() {
			res := run()
			if !c.send(func() { c.complete(o, res) }) {
				o.resolve(res.err)
			}
		})
	}
	if l.running == nil && len(l.queue) == 0 {
		delete(c.lanes, name)
	}
}

// prepare validates o against the current state and returns the work to run
// for it. A nil job with a nil error means there is nothing to do.
func (c *Controller) prepare(o *op) (job, error) {
	e := c.tunnels[o.name]

	switch o.kind {
	case opBringUp:
		if err := c.requireManaged(e, o.name); err != nil {
			return nil, err
		}
		if err := e.state.CheckBringUp(); err != nil {
			return nil, err
		}
		return func() result { return c.runBringUp(o) }, nil

	case opBringDown:
		if err := c.requireManaged(e, o.name); err != nil {
			return nil, err
		}
		if err := e.state.CheckBringDown(); err != nil {
			return nil, err
		}
		c.stopPolling(e)
		fallback := e.cfg.Clone()
		return func() result { return c.runBringDown(o, fallback) }, nil

	case opPoll:
		if e == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, o.name)
		}
		if !e.managed || e.state.Kind != tunnel.KindUp {
			return nil, nil
		}
		return func() result { return c.runPoll(o) }, nil

	case opSave, opCreate:
		if e != nil && !e.managed {
			return nil, fmt.Errorf("%w: %s", ErrUnmanaged, o.name)
		}
		if e != nil && o.kind == opCreate {
			return nil, fmt.Errorf("%w: %s", ErrExists, o.name)
		}
		if e != nil && (e.state.Kind.Active() || e.state.Kind.Transitional()) {
			return nil, fmt.Errorf("%w: bring %s down before saving", ErrBusy, o.name)
		}
		return func() result { return c.runSave(o) }, nil

	case opDelete:
		if e != nil && !e.managed {
			return nil, fmt.Errorf("%w: %s", ErrUnmanaged, o.name)
		}
		kind := tunnel.KindDown
		var fallback *wgconf.Config
		if e != nil {
			c.stopPolling(e)
			kind = e.state.Kind
			fallback = e.cfg.Clone()
		}
		return func() result { return c.runDelete(o, kind, fallback) }, nil

	case opReload:
		return func() result { return c.runReload(o) }, nil

	case opForget:
		if e == nil {
			return func() result { return c.runReload(o) }, nil
		}
		if !e.managed {
			return nil, nil
		}
		kind := e.state.Kind
		fallback := e.cfg.Clone()
		return func() result { return c.runForget(o, kind, fallback) }, nil
	}
	return nil, fmt.Errorf("unknown operation %d", o.kind)
}

func (c *Controller) requireManaged(e *entry, name string) error {
	if e == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !e.managed {
		return fmt.Errorf("%w: %s", ErrUnmanaged, name)
	}
	return nil
}

// begin moves a tunnel into a transitional state from a worker
func (c *Controller) begin(name string, kind tunnel.Kind) {
	c.send(func() {
		if e, ok := c.tunnels[name]; ok {
			c.setState(e, tunnel.State{Kind: kind})
		}
	})
}

// complete applies a worker's result, resolves the operation and starts the
// next one in the tunnel's queue
func (c *Controller) complete(o *op, res result) {
	e := c.tunnels[o.name]

	switch {
	case res.removed:
		if e != nil {
			c.stopPolling(e)
			delete(c.tunnels, o.name)
			c.publish(tunnel.EventRemoved, e, e.state.Kind, nil)
		}

	case o.kind == opReload, res.reload, o.kind == opForget && e == nil:
		c.applyReload(o, e, res)

	case o.kind == opSave || o.kind == opCreate:
		if res.err == nil {
			if e == nil {
				e = &entry{name: o.name, managed: true, cfg: res.cfg, state: tunnel.Down(), updated: time.Now()}
				c.tunnels[o.name] = e
				c.publish(tunnel.EventAdded, e, "", nil)
			} else {
				e.cfg = res.cfg
				e.updated = time.Now()
				c.publish(tunnel.EventUpdated, e, e.state.Kind, nil)
			}
		}

	case e != nil:
		if res.cfg != nil {
			e.cfg = res.cfg
		}
		if res.state != nil {
			c.setState(e, *res.state)
		}
		c.syncPolling(e)
	}

	if res.err != nil {
		o.log().WithError(res.err).Debug("operation finished with error")
	}
	o.resolve(res.err)

	l, ok := c.lanes[o.name]
	if !ok {
		return
	}
	l.running = nil
	if l.cancelled {
		l.cancelled = false
		l.drop(ErrCancelled)
	}
	c.pump(o.name)
}

func (c *Controller) applyReload(o *op, e *entry, res result) {
	if res.err != nil {
		if errors.Is(res.err, ErrNotFound) {
			return
		}
		o.log().WithError(res.err).Warn("failed to load config")
		c.publishLoadFailed(o.name, res.err)
		return
	}

	switch {
	case e == nil:
		e = &entry{name: o.name, managed: true, cfg: res.cfg, state: tunnel.Down(), updated: time.Now()}
		c.tunnels[o.name] = e
		c.publish(tunnel.EventAdded, e, "", nil)
	case !e.managed:
		// a config appeared for a live orphan: adopt it
		prev := e.state.Kind
		e.managed = true
		e.cfg = res.cfg
		e.state = tunnel.State{Kind: tunnel.KindUp, Since: time.Now()}
		e.updated = time.Now()
		c.syncPolling(e)
		c.publish(tunnel.EventAdded, e, prev, nil)
	default:
		e.cfg = res.cfg
		e.updated = time.Now()
		c.publish(tunnel.EventUpdated, e, e.state.Kind, nil)
	}
}
