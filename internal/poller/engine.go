// internal/poller/engine.go
package poller

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/sensorbus/internal/fault"
	"github.com/tamzrod/sensorbus/internal/frame"
	"github.com/tamzrod/sensorbus/internal/sensor"
)

// DefaultAttempts is how many times an exchange is tried when the device
// stays silent.
const DefaultAttempts = 3

// Bus is the transport surface the engine needs. Each call is one
// uninterrupted request/response unit on the named port.
type Bus interface {
	WriteThenReadUntil(ctx context.Context, port string, req []byte, size int, complete func([]byte) bool) ([]byte, error)
}

// RegisterWrite is one FC 6 write.
type RegisterWrite struct {
	Register uint16
	Value    uint16
}

// Engine performs sensor exchanges and owns the device table.
// The table is keyed by port: one sensor per port.
type Engine struct {
	bus Bus
	log *zap.Logger
	now func() time.Time

	attempts int

	mu      sync.RWMutex
	devices map[string]sensor.Device
}

type EngineOption func(*Engine)

// WithAttempts overrides DefaultAttempts.
func WithAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.attempts = n
		}
	}
}

func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the reading timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(bus Bus, opts ...EngineOption) *Engine {
	e := &Engine{
		bus:      bus,
		log:      zap.NewNop(),
		now:      time.Now,
		attempts: DefaultAttempts,
		devices:  make(map[string]sensor.Device),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ---- device table ----

// Configure records dev in the table. Bookkeeping only: no bus traffic.
func (e *Engine) Configure(dev sensor.Device) error {
	if err := dev.Validate(); err != nil {
		return err
	}
	if _, err := frame.BaudCode(dev.BaudRate); err != nil {
		return fault.Annotate(err, dev.Port, dev.Address)
	}

	e.mu.Lock()
	e.devices[dev.Port] = dev
	e.mu.Unlock()

	e.log.Info("device configured",
		zap.String("device", dev.Name),
		zap.String("port", dev.Port),
		zap.Uint8("address", dev.Address),
		zap.Int("baud", dev.BaudRate),
		zap.Stringer("mode", dev.Mode))
	return nil
}

// Device returns the table entry for port.
func (e *Engine) Device(port string) (sensor.Device, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.devices[port]
	return d, ok
}

// Devices returns every table entry sorted by port.
func (e *Engine) Devices() []sensor.Device {
	e.mu.RLock()
	out := make([]sensor.Device, 0, len(e.devices))
	for _, d := range e.devices {
		out = append(out, d)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// Commit replaces the address and baud rate recorded for port. It is the
// only path by which a reconfiguration reaches the table.
func (e *Engine) Commit(port string, addr uint8, baud int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.devices[port]
	if !ok {
		return fault.Newf(fault.InvalidParameter, "commit", port, "no device configured")
	}
	d.Address = addr
	d.BaudRate = baud
	e.devices[port] = d
	return nil
}

func (e *Engine) setMode(port string, addr uint8, m sensor.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.devices[port]; ok && d.Address == addr {
		d.Mode = m
		e.devices[port] = d
	}
}

// ---- reads ----

// ReadBurst reads the whole measurement block in one request.
func (e *Engine) ReadBurst(ctx context.Context, dev sensor.Device) (sensor.Reading, error) {
	data, err := e.readRegisters(ctx, dev, frame.BlockStart, frame.BlockLen)
	if err != nil {
		return sensor.Reading{}, err
	}
	r, err := frame.DecodeBlock(data, dev.MachineClass, e.now())
	if err != nil {
		return sensor.Reading{}, fault.Annotate(err, dev.Port, dev.Address)
	}
	return r, nil
}

// ReadSingle reads each measured register with its own request. Any failed
// register fails the whole reading.
func (e *Engine) ReadSingle(ctx context.Context, dev sensor.Device) (sensor.Reading, error) {
	block := make([]byte, frame.BlockBytes)
	for _, reg := range frame.MeasuredRegisters() {
		data, err := e.readRegisters(ctx, dev, reg, 1)
		if err != nil {
			return sensor.Reading{}, err
		}
		if err := frame.PutRegister(block, reg, frame.Registers(data)[0]); err != nil {
			return sensor.Reading{}, fault.Annotate(err, dev.Port, dev.Address)
		}
	}
	r, err := frame.DecodeBlock(block, dev.MachineClass, e.now())
	if err != nil {
		return sensor.Reading{}, fault.Annotate(err, dev.Port, dev.Address)
	}
	return r, nil
}

func (e *Engine) readRegisters(ctx context.Context, dev sensor.Device, start, count uint16) ([]byte, error) {
	req, err := frame.ReadHoldingRegisters(dev.Address, start, count)
	if err != nil {
		return nil, fault.Annotate(err, dev.Port, dev.Address)
	}
	raw, err := e.exchange(ctx, dev, "read", req, frame.ReadResponseLen(count))
	if err != nil {
		return nil, err
	}
	data, err := frame.ParseReadRegisters(raw, dev.Address, count)
	if err != nil {
		return nil, fault.Annotate(err, dev.Port, dev.Address)
	}
	return data, nil
}

// ---- configuration writes ----

// WriteConfig writes each register in order and requires every write to be
// acknowledged before the next is sent.
func (e *Engine) WriteConfig(ctx context.Context, dev sensor.Device, writes ...RegisterWrite) error {
	for _, w := range writes {
		req := frame.WriteSingleRegister(dev.Address, w.Register, w.Value)
		raw, err := e.exchange(ctx, dev, "write", req, frame.WriteAckLen)
		if err != nil {
			return err
		}
		if err := frame.ParseWriteAck(raw, req); err != nil {
			return fault.Annotate(err, dev.Port, dev.Address)
		}
		e.log.Debug("register written",
			zap.String("port", dev.Port),
			zap.Uint8("address", dev.Address),
			zap.Uint16("register", w.Register),
			zap.Uint16("value", w.Value))
	}
	return nil
}

// OptimizeForSpeed raises the output rate to its maximum and shortens the
// detection period, then saves.
func (e *Engine) OptimizeForSpeed(ctx context.Context, dev sensor.Device) error {
	err := e.WriteConfig(ctx, dev,
		RegisterWrite{frame.RegUnlock, frame.UnlockKey},
		RegisterWrite{frame.RegOutputRate, frame.OutputRateMax},
		RegisterWrite{frame.RegDetectPeriod, frame.DetectPeriodMin},
		RegisterWrite{frame.RegSave, frame.SaveNow},
	)
	if err != nil {
		e.log.Warn("optimize for speed failed", zap.String("port", dev.Port), zap.Error(err))
		return err
	}
	e.log.Info("device optimized for speed", zap.String("port", dev.Port), zap.Uint8("address", dev.Address))
	return nil
}

// EnableHighSpeedMode switches the device to high-speed sampling and records
// the mode once the device acknowledged every write.
func (e *Engine) EnableHighSpeedMode(ctx context.Context, dev sensor.Device) error {
	err := e.WriteConfig(ctx, dev,
		RegisterWrite{frame.RegUnlock, frame.UnlockKey},
		RegisterWrite{frame.RegHighSpeed, frame.HighSpeedOn},
		RegisterWrite{frame.RegSave, frame.SaveNow},
	)
	if err != nil {
		e.log.Warn("enable high-speed mode failed", zap.String("port", dev.Port), zap.Error(err))
		return err
	}
	e.setMode(dev.Port, dev.Address, sensor.ModeHighSpeed)
	e.log.Info("high-speed mode enabled", zap.String("port", dev.Port), zap.Uint8("address", dev.Address))
	return nil
}

// Capabilities returns static model metadata for dev.
func (e *Engine) Capabilities(dev sensor.Device) sensor.Capabilities {
	mode := dev.Mode
	if cur, ok := e.Device(dev.Port); ok && cur.Address == dev.Address {
		mode = cur.Mode
	}
	return sensor.Capabilities{
		Model:           "WTVB01-485",
		BlockStart:      frame.BlockStart,
		BlockLen:        frame.BlockLen,
		BaudRates:       frame.BaudRates(),
		AddressMin:      sensor.AddressMin,
		AddressMax:      sensor.AddressMax,
		MaxOutputRateHz: 200,
		HighSpeed:       mode == sensor.ModeHighSpeed,
		Mode:            mode,
		Measurements: []string{
			"acceleration", "velocity", "temperature", "frequency",
		},
	}
}

// ---- exchange ----

// exchange sends req and returns the raw response. Silence is retried up to
// the attempt limit. A malformed response is returned as is for the caller
// to decode, and is never retried.
func (e *Engine) exchange(ctx context.Context, dev sensor.Device, op string, req []byte, size int) ([]byte, error) {
	complete := func(b []byte) bool { return frame.Complete(b, size) }

	for attempt := 1; attempt <= e.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fault.New(fault.DeviceNotResponding, op, dev.Port, err).WithAddress(dev.Address)
		}

		raw, err := e.bus.WriteThenReadUntil(ctx, dev.Port, req, size, complete)
		if err != nil {
			return nil, fault.Annotate(err, dev.Port, dev.Address)
		}
		if len(raw) > 0 {
			return raw, nil
		}

		e.log.Debug("no response",
			zap.String("port", dev.Port),
			zap.Uint8("address", dev.Address),
			zap.Int("attempt", attempt))
	}

	return nil, fault.Newf(fault.DeviceNotResponding, op, dev.Port,
		"no response after %d attempts", e.attempts).WithAddress(dev.Address)
}
