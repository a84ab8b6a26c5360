// internal/transport/registry.go
package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TheCount/go-multilocker/multilocker"
	"go.uber.org/zap"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// DefaultSettleDelay is the pause between the end of a write and the first
// read, covering half-duplex turnaround on the device side.
const DefaultSettleDelay = 10 * time.Millisecond

// conn is one exclusively held line. All fields except guard are protected
// by guard.
type conn struct {
	guard  *Guard
	cfg    LineConfig
	port   Port
	closed bool
}

// Registry owns every open serial line, keyed by port identifier.
// The registry lock covers map access only; I/O runs under the per-port guard.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*conn

	drivers map[string]Driver
	lister  Lister
	settle  time.Duration
	log     *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithDriver registers or replaces a named driver.
func WithDriver(name string, d Driver) Option {
	return func(r *Registry) { r.drivers[name] = d }
}

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(r *Registry) { r.settle = d }
}

// WithLister overrides host port enumeration.
func WithLister(l Lister) Option {
	return func(r *Registry) { r.lister = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns:   make(map[string]*conn),
		drivers: defaultDrivers(),
		lister:  hostPorts,
		settle:  DefaultSettleDelay,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ---- lifecycle ----

// Open opens a line. Opening an identifier that is already open is a no-op
// and leaves the existing configuration untouched.
func (r *Registry) Open(ctx context.Context, cfg LineConfig) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	drv, ok := r.drivers[cfg.Driver]
	if !ok {
		return fault.Newf(fault.InvalidParameter, "open", cfg.Port, "unknown driver %q", cfg.Driver)
	}

	r.mu.Lock()
	if existing, ok := r.conns[cfg.Port]; ok {
		r.mu.Unlock()
		return r.awaitOpen(ctx, existing)
	}
	// Reserve the identifier with the guard held so concurrent callers queue
	// behind the OS open instead of racing it.
	c := &conn{guard: NewGuard(), cfg: cfg}
	c.guard.Lock()
	r.conns[cfg.Port] = c
	r.mu.Unlock()

	port, err := drv.Open(cfg)
	if err != nil {
		c.closed = true
		r.remove(cfg.Port, c)
		c.guard.Release()
		if fault.KindOf(err) == fault.Unknown {
			err = fault.New(fault.OpenFailure, "open", cfg.Port, err)
		}
		r.log.Warn("port open failed", zap.String("port", cfg.Port), zap.Error(err))
		return err
	}

	c.port = port
	c.guard.Release()

	if cfg.FlowControl != FlowNone {
		r.log.Warn("flow control requested but not applied by driver",
			zap.String("port", cfg.Port),
			zap.String("flow_control", string(cfg.FlowControl)),
			zap.String("driver", cfg.Driver))
	}
	r.log.Info("port opened", zap.String("line", cfg.String()), zap.String("driver", cfg.Driver))
	return nil
}

// awaitOpen waits out an in-progress open of the same identifier.
func (r *Registry) awaitOpen(ctx context.Context, c *conn) error {
	if err := c.guard.Acquire(ctx); err != nil {
		return fault.New(fault.OpenFailure, "open", c.cfg.Port, err)
	}
	defer c.guard.Release()
	if c.closed {
		return fault.Newf(fault.OpenFailure, "open", c.cfg.Port, "concurrent open failed")
	}
	return nil
}

// Close releases a line. Closing an unopened identifier succeeds.
// An in-flight transaction on the line completes first.
func (r *Registry) Close(id string) error {
	c := r.lookup(id)
	if c == nil {
		return nil
	}

	c.guard.Lock()
	defer c.guard.Unlock()

	if c.closed {
		return nil
	}
	err := c.port.Close()
	c.closed = true
	r.remove(id, c)

	r.log.Info("port closed", zap.String("port", id))
	if err != nil {
		return fault.New(fault.IoFailure, "close", id, err)
	}
	return nil
}

// Reopen closes the line and opens it again with cfg, keeping the same
// guard so queued callers keep their order. On failure the line is gone.
func (r *Registry) Reopen(ctx context.Context, cfg LineConfig) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	drv, ok := r.drivers[cfg.Driver]
	if !ok {
		return fault.Newf(fault.InvalidParameter, "reopen", cfg.Port, "unknown driver %q", cfg.Driver)
	}

	return r.withConn(ctx, "reopen", cfg.Port, func(c *conn) error {
		if err := c.port.Close(); err != nil {
			r.log.Warn("close before reopen failed", zap.String("port", cfg.Port), zap.Error(err))
		}

		port, err := drv.Open(cfg)
		if err != nil {
			c.closed = true
			r.remove(cfg.Port, c)
			if fault.KindOf(err) == fault.Unknown {
				err = fault.New(fault.OpenFailure, "reopen", cfg.Port, err)
			}
			r.log.Error("port reopen failed", zap.String("line", cfg.String()), zap.Error(err))
			return err
		}

		c.port = port
		c.cfg = cfg
		r.log.Info("port reopened", zap.String("line", cfg.String()))
		return nil
	})
}

// CloseAll quiesces every line at once and releases all handles.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	conns := make([]*conn, 0, len(r.conns))
	lockers := make([]sync.Locker, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
		lockers = append(lockers, c.guard)
	}
	r.mu.RUnlock()

	if len(conns) == 0 {
		return nil
	}

	all := multilocker.New(lockers...)
	all.Lock()
	defer all.Unlock()

	var errs []string
	for _, c := range conns {
		if c.closed {
			continue
		}
		if err := c.port.Close(); err != nil {
			errs = append(errs, c.cfg.Port+": "+err.Error())
		}
		c.closed = true
		r.remove(c.cfg.Port, c)
	}

	if len(errs) > 0 {
		return fault.New(fault.IoFailure, "close all", "", errors.New(strings.Join(errs, " | ")))
	}
	return nil
}

// ---- introspection ----

// Config returns the active configuration of an open line.
func (r *Registry) Config(id string) (LineConfig, bool) {
	c := r.lookup(id)
	if c == nil {
		return LineConfig{}, false
	}
	c.guard.Lock()
	defer c.guard.Unlock()
	if c.closed {
		return LineConfig{}, false
	}
	return c.cfg, true
}

// OpenPorts lists open identifiers in sorted order.
func (r *Registry) OpenPorts() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// ---- I/O ----

// Write discards stale input, writes b and flushes before returning.
func (r *Registry) Write(ctx context.Context, id string, b []byte) error {
	return r.withConn(ctx, "write", id, func(c *conn) error {
		if err := c.port.Discard(); err != nil {
			return fault.New(fault.IoFailure, "write", id, err)
		}
		return r.transmit(c, b)
	})
}

// Read reads up to max bytes within the line's read timeout. No data within
// the window yields an empty slice and a nil error.
func (r *Registry) Read(ctx context.Context, id string, max int) ([]byte, error) {
	var out []byte
	err := r.withConn(ctx, "read", id, func(c *conn) error {
		var err error
		out, err = r.receive(c, max)
		return err
	})
	return out, err
}

// WriteThenRead runs write, settle delay and read as one uninterrupted unit
// on the line. It reads until responseSize bytes arrived or a read window
// passes without data.
func (r *Registry) WriteThenRead(ctx context.Context, id string, req []byte, responseSize int) ([]byte, error) {
	return r.WriteThenReadUntil(ctx, id, req, responseSize, nil)
}

// WriteThenReadUntil is WriteThenRead with an early completion check, used
// for responses that may be shorter than responseSize (exception frames).
func (r *Registry) WriteThenReadUntil(
	ctx context.Context,
	id string,
	req []byte,
	responseSize int,
	complete func([]byte) bool,
) ([]byte, error) {
	if responseSize <= 0 {
		return nil, fault.Newf(fault.InvalidParameter, "transact", id, "response size %d must be > 0", responseSize)
	}

	var out []byte
	err := r.withConn(ctx, "transact", id, func(c *conn) error {
		if err := c.port.Discard(); err != nil {
			return fault.New(fault.IoFailure, "transact", id, err)
		}
		if err := r.transmit(c, req); err != nil {
			return err
		}

		if r.settle > 0 {
			time.Sleep(r.settle)
		}

		out = make([]byte, 0, responseSize)
		for len(out) < responseSize {
			chunk, err := r.receive(c, responseSize-len(out))
			if err != nil {
				return err
			}
			if len(chunk) == 0 {
				break
			}
			out = append(out, chunk...)
			if complete != nil && complete(out) {
				break
			}
		}

		if ce := r.log.Check(zap.DebugLevel, "transaction"); ce != nil {
			ce.Write(
				zap.String("port", id),
				zap.String("tx", hex.EncodeToString(req)),
				zap.String("rx", hex.EncodeToString(out)),
			)
		}
		return nil
	})
	return out, err
}

// SetLineDirection drives the transmit-enable signal. Lines that switch
// direction on their own treat this as a no-op.
func (r *Registry) SetLineDirection(ctx context.Context, id string, enabled bool) error {
	return r.withConn(ctx, "direction", id, func(c *conn) error {
		return r.direction(c, enabled)
	})
}

// ---- internals (guard held) ----

func (r *Registry) transmit(c *conn, b []byte) error {
	id := c.cfg.Port

	if err := r.direction(c, true); err != nil {
		return err
	}
	if err := writeAll(c.port, b); err != nil {
		_ = r.direction(c, false)
		return fault.New(fault.IoFailure, "write", id, err)
	}
	if err := c.port.Flush(); err != nil {
		_ = r.direction(c, false)
		return fault.New(fault.IoFailure, "flush", id, err)
	}
	return r.direction(c, false)
}

func (r *Registry) receive(c *conn, max int) ([]byte, error) {
	if max <= 0 {
		return []byte{}, nil
	}
	buf := make([]byte, max)
	n, err := c.port.Read(buf)
	if err != nil {
		return nil, fault.New(fault.IoFailure, "read", c.cfg.Port, err)
	}
	return buf[:n], nil
}

func (r *Registry) direction(c *conn, enabled bool) error {
	if !c.cfg.ManualDirection {
		return nil
	}
	err := c.port.SetDirection(enabled)
	if errors.Is(err, ErrDirectionUnsupported) {
		return nil
	}
	if err != nil {
		return fault.New(fault.IoFailure, "direction", c.cfg.Port, err)
	}
	return nil
}

func (r *Registry) lookup(id string) *conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[id]
}

func (r *Registry) remove(id string, c *conn) {
	r.mu.Lock()
	if r.conns[id] == c {
		delete(r.conns, id)
	}
	r.mu.Unlock()
}

func (r *Registry) withConn(ctx context.Context, op, id string, fn func(c *conn) error) error {
	c := r.lookup(id)
	if c == nil {
		return fault.New(fault.PortNotOpen, op, id, nil)
	}
	if err := c.guard.Acquire(ctx); err != nil {
		return fault.New(fault.IoFailure, op, id, err)
	}
	defer c.guard.Release()

	if c.closed {
		return fault.New(fault.PortNotOpen, op, id, nil)
	}
	return fn(c)
}

func writeAll(p Port, b []byte) error {
	for len(b) > 0 {
		n, err := p.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("short write")
		}
		b = b[n:]
	}
	return nil
}
