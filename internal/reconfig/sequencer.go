// internal/reconfig/sequencer.go
package reconfig

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/sensorbus/internal/fault"
	"github.com/tamzrod/sensorbus/internal/frame"
	"github.com/tamzrod/sensorbus/internal/poller"
	"github.com/tamzrod/sensorbus/internal/sensor"
	"github.com/tamzrod/sensorbus/internal/transport"
)

// DefaultAckTimeout bounds the whole change command, unlock to save.
const DefaultAckTimeout = time.Second

// Devices is the engine surface the sequencer drives.
type Devices interface {
	Device(port string) (sensor.Device, bool)
	WriteConfig(ctx context.Context, dev sensor.Device, writes ...poller.RegisterWrite) error
	ReadBurst(ctx context.Context, dev sensor.Device) (sensor.Reading, error)
	Commit(port string, addr uint8, baud int) error
}

// Lines is the transport surface the sequencer drives.
type Lines interface {
	Config(port string) (transport.LineConfig, bool)
	Reopen(ctx context.Context, cfg transport.LineConfig) error
}

// Target is the requested bus address and baud rate. A zero field keeps the
// current value.
type Target struct {
	Address  uint8
	BaudRate int
}

// Result reports how far a change got.
type Result struct {
	Port    string
	From    sensor.Device
	To      sensor.Device
	State   State
	History []State
}

// Sequencer changes a live device's address or baud rate. Changes on the
// same port are serialized; changes on distinct ports are independent.
type Sequencer struct {
	devices    Devices
	lines      Lines
	log        *zap.Logger
	ackTimeout time.Duration

	mu    sync.Mutex
	ports map[string]*sync.Mutex
}

type Option func(*Sequencer)

// WithAckTimeout overrides DefaultAckTimeout.
func WithAckTimeout(d time.Duration) Option {
	return func(s *Sequencer) {
		if d > 0 {
			s.ackTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.log = l
		}
	}
}

func New(devices Devices, lines Lines, opts ...Option) (*Sequencer, error) {
	if devices == nil {
		return nil, errors.New("reconfig: devices required")
	}
	if lines == nil {
		return nil, errors.New("reconfig: lines required")
	}
	s := &Sequencer{
		devices:    devices,
		lines:      lines,
		log:        zap.NewNop(),
		ackTimeout: DefaultAckTimeout,
		ports:      make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Sequencer) portLock(port string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.ports[port]
	if !ok {
		m = &sync.Mutex{}
		s.ports[port] = m
	}
	return m
}

// Change runs one reconfiguration of the device on port.
//
// A change command that is not fully acknowledged ends RolledBack: the
// transport is untouched and the table keeps the old record. Once the
// device acknowledged, a failed reopen or verification ends Ambiguous and
// the table also keeps the old record, since the device's real state is
// unknown. Only a verified change is committed.
func (s *Sequencer) Change(ctx context.Context, port string, target Target) (Result, error) {
	lock := s.portLock(port)
	lock.Lock()
	defer lock.Unlock()

	run := &run{log: s.log.With(zap.String("port", port)), res: Result{Port: port}}
	run.to(Idle)

	from, ok := s.devices.Device(port)
	if !ok {
		return run.res, fault.Newf(fault.InvalidParameter, "reconfigure", port, "no device configured")
	}
	line, ok := s.lines.Config(port)
	if !ok {
		return run.res, fault.New(fault.PortNotOpen, "reconfigure", port, nil)
	}
	run.res.From = from

	to, writes, err := plan(from, target)
	if err != nil {
		return run.res, err
	}
	run.res.To = to

	// ---- change command, under the old address and baud ----

	run.to(SendingChangeCommand)
	ackCtx, cancel := context.WithTimeout(ctx, s.ackTimeout)
	run.to(AwaitingAck)
	err = s.devices.WriteConfig(ackCtx, from, writes...)
	cancel()
	if err != nil {
		run.to(RolledBack)
		run.log.Warn("change command not acknowledged, device presumed unchanged", zap.Error(err))
		return run.res, err
	}

	// ---- transport switch ----

	if to.BaudRate != from.BaudRate {
		run.to(ReopeningTransport)
		line.BaudRate = to.BaudRate
		if err := s.lines.Reopen(ctx, line); err != nil {
			run.to(Ambiguous)
			run.log.Error("reopen at new baud failed after acknowledged change", zap.Error(err))
			return run.res, fault.New(fault.ReconfigurationAmbiguous, "reconfigure", port, err).WithAddress(to.Address)
		}
	}

	// ---- verification, under the new address and baud ----

	run.to(Verifying)
	if _, err := s.devices.ReadBurst(ctx, to); err != nil {
		run.to(Ambiguous)
		run.log.Error("verification read failed after acknowledged change", zap.Error(err))
		return run.res, fault.New(fault.ReconfigurationAmbiguous, "reconfigure", port, err).WithAddress(to.Address)
	}

	if err := s.devices.Commit(port, to.Address, to.BaudRate); err != nil {
		run.to(Ambiguous)
		return run.res, fault.New(fault.ReconfigurationAmbiguous, "reconfigure", port, err).WithAddress(to.Address)
	}
	run.to(Committed)
	run.log.Info("device reconfigured",
		zap.Uint8("from_address", from.Address),
		zap.Int("from_baud", from.BaudRate),
		zap.Uint8("to_address", to.Address),
		zap.Int("to_baud", to.BaudRate))
	return run.res, nil
}

// plan resolves target against the current record and builds the change
// command: unlock, the changed registers, save.
func plan(from sensor.Device, target Target) (sensor.Device, []poller.RegisterWrite, error) {
	to := from
	if target.Address != 0 {
		to.Address = target.Address
	}
	if target.BaudRate != 0 {
		to.BaudRate = target.BaudRate
	}
	if err := to.Validate(); err != nil {
		return to, nil, err
	}

	writes := []poller.RegisterWrite{{Register: frame.RegUnlock, Value: frame.UnlockKey}}
	if to.Address != from.Address {
		writes = append(writes, poller.RegisterWrite{Register: frame.RegAddress, Value: uint16(to.Address)})
	}
	if to.BaudRate != from.BaudRate {
		code, err := frame.BaudCode(to.BaudRate)
		if err != nil {
			return to, nil, fault.Annotate(err, from.Port, from.Address)
		}
		writes = append(writes, poller.RegisterWrite{Register: frame.RegBaud, Value: code})
	}
	if len(writes) == 1 {
		return to, nil, fault.Newf(fault.InvalidParameter, "reconfigure", from.Port,
			"target equals current address 0x%02X and baud %d", from.Address, from.BaudRate)
	}
	writes = append(writes, poller.RegisterWrite{Register: frame.RegSave, Value: frame.SaveNow})
	return to, writes, nil
}

type run struct {
	log *zap.Logger
	res Result
}

func (r *run) to(s State) {
	if n := len(r.res.History); n > 0 {
		r.log.Debug("reconfiguration state", zap.Stringer("from", r.res.History[n-1]), zap.Stringer("to", s))
	}
	r.res.History = append(r.res.History, s)
	r.res.State = s
}
