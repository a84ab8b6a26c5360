// internal/reconfig/sequencer_test.go
package reconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tamzrod/sensorbus/internal/fault"
	"github.com/tamzrod/sensorbus/internal/poller"
	"github.com/tamzrod/sensorbus/internal/sensor"
	"github.com/tamzrod/sensorbus/internal/simdev"
	"github.com/tamzrod/sensorbus/internal/transport"
)

const port = "/dev/ttyUSB0"

type rig struct {
	bus *simdev.Bus
	sim *simdev.Device
	reg *transport.Registry
	eng *poller.Engine
	seq *Sequencer
}

func newRig(t *testing.T) *rig {
	t.Helper()
	ctx := context.Background()

	bus := simdev.NewBus()
	sim := simdev.New(0x50, 115200)
	bus.Attach(port, sim)

	reg := transport.NewRegistry(
		transport.WithDriver(simdev.DriverName, bus),
		transport.WithSettleDelay(0),
	)
	require.NoError(t, reg.Open(ctx, transport.LineConfig{Port: port, BaudRate: 115200, Driver: simdev.DriverName}))

	eng := poller.NewEngine(reg)
	require.NoError(t, eng.Configure(sensor.Device{Name: "fan-2", Port: port, Address: 0x50, BaudRate: 115200}))

	seq, err := New(eng, reg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	return &rig{bus: bus, sim: sim, reg: reg, eng: eng, seq: seq}
}

func (r *rig) assertTableUnchanged(t *testing.T) {
	t.Helper()
	d, ok := r.eng.Device(port)
	require.True(t, ok)
	assert.Equal(t, uint8(0x50), d.Address)
	assert.Equal(t, 115200, d.BaudRate)
}

func (r *rig) lineBaud(t *testing.T) int {
	t.Helper()
	cfg, ok := r.reg.Config(port)
	require.True(t, ok)
	return cfg.BaudRate
}

func TestChangeCommitted(t *testing.T) {
	r := newRig(t)

	res, err := r.seq.Change(context.Background(), port, Target{Address: 0x51, BaudRate: 230400})
	require.NoError(t, err)

	assert.Equal(t, Committed, res.State)
	assert.Equal(t, []State{Idle, SendingChangeCommand, AwaitingAck, ReopeningTransport, Verifying, Committed}, res.History)

	d, _ := r.eng.Device(port)
	assert.Equal(t, uint8(0x51), d.Address)
	assert.Equal(t, 230400, d.BaudRate)
	assert.Equal(t, "fan-2", d.Name)

	assert.Equal(t, 230400, r.lineBaud(t))
	assert.Equal(t, uint8(0x51), r.sim.Address())
	assert.Equal(t, 230400, r.sim.BaudRate())

	// the engine keeps talking to the device at its new settings
	_, err = r.eng.ReadBurst(context.Background(), d)
	require.NoError(t, err)
}

func TestAckTimeoutRollsBack(t *testing.T) {
	r := newRig(t)
	r.sim.DropNext(100)

	res, err := r.seq.Change(context.Background(), port, Target{Address: 0x51, BaudRate: 230400})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.DeviceNotResponding))

	assert.Equal(t, RolledBack, res.State)
	assert.NotContains(t, res.History, ReopeningTransport)

	r.assertTableUnchanged(t)
	assert.Equal(t, 115200, r.lineBaud(t), "transport still at the old baud")
	assert.Equal(t, 1, r.bus.Opens(port))
}

func TestCorruptAckRollsBack(t *testing.T) {
	r := newRig(t)
	r.sim.CorruptNext(1)

	res, err := r.seq.Change(context.Background(), port, Target{BaudRate: 230400})
	assert.True(t, fault.Is(err, fault.CorruptFrame))
	assert.Equal(t, RolledBack, res.State)
	r.assertTableUnchanged(t)
	assert.Equal(t, 115200, r.lineBaud(t))
}

func TestVerificationFailureIsAmbiguous(t *testing.T) {
	r := newRig(t)
	r.sim.StickBaud(true)

	res, err := r.seq.Change(context.Background(), port, Target{Address: 0x51, BaudRate: 230400})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.ReconfigurationAmbiguous), "%v", err)
	assert.False(t, fault.KindOf(err).Retryable())

	assert.Equal(t, Ambiguous, res.State)
	assert.Equal(t, []State{Idle, SendingChangeCommand, AwaitingAck, ReopeningTransport, Verifying, Ambiguous}, res.History)

	r.assertTableUnchanged(t)
	assert.Equal(t, 230400, r.lineBaud(t))
}

func TestReopenFailureIsAmbiguous(t *testing.T) {
	r := newRig(t)
	r.bus.FailOpen(port, errors.New("device unplugged"))

	res, err := r.seq.Change(context.Background(), port, Target{BaudRate: 9600})
	assert.True(t, fault.Is(err, fault.ReconfigurationAmbiguous))
	assert.Equal(t, Ambiguous, res.State)
	assert.NotContains(t, res.History, Verifying)
	r.assertTableUnchanged(t)
}

func TestAddressOnlyChangeKeepsLine(t *testing.T) {
	r := newRig(t)

	res, err := r.seq.Change(context.Background(), port, Target{Address: 0x10})
	require.NoError(t, err)
	assert.Equal(t, Committed, res.State)
	assert.NotContains(t, res.History, ReopeningTransport)
	assert.Equal(t, 1, r.bus.Opens(port))

	d, _ := r.eng.Device(port)
	assert.Equal(t, uint8(0x10), d.Address)
	assert.Equal(t, 115200, d.BaudRate)
}

func TestInvalidTargets(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	for _, tg := range []Target{
		{Address: 250},
		{BaudRate: 1200},
		{Address: 0x50, BaudRate: 115200},
		{},
	} {
		res, err := r.seq.Change(ctx, port, tg)
		assert.True(t, fault.Is(err, fault.InvalidParameter), "%+v: %v", tg, err)
		assert.Equal(t, Idle, res.State)
	}

	_, err := r.seq.Change(ctx, "/dev/ttyUSB9", Target{Address: 2})
	assert.True(t, fault.Is(err, fault.InvalidParameter))
	assert.Zero(t, r.sim.Requests())
}

// ---- bounded ack wait ----

type hangingDevices struct {
	dev sensor.Device
}

func (h hangingDevices) Device(string) (sensor.Device, bool) { return h.dev, true }

func (h hangingDevices) WriteConfig(ctx context.Context, _ sensor.Device, _ ...poller.RegisterWrite) error {
	<-ctx.Done()
	return fault.New(fault.DeviceNotResponding, "write", h.dev.Port, ctx.Err())
}

func (h hangingDevices) ReadBurst(context.Context, sensor.Device) (sensor.Reading, error) {
	return sensor.Reading{}, nil
}

func (h hangingDevices) Commit(string, uint8, int) error { return nil }

type staticLines struct{ reopened bool }

func (s *staticLines) Config(p string) (transport.LineConfig, bool) {
	return transport.LineConfig{Port: p, BaudRate: 9600}, true
}

func (s *staticLines) Reopen(context.Context, transport.LineConfig) error {
	s.reopened = true
	return nil
}

func TestAckWaitIsBounded(t *testing.T) {
	lines := &staticLines{}
	seq, err := New(
		hangingDevices{dev: sensor.Device{Port: "p", Address: 1, BaudRate: 9600}},
		lines,
		WithAckTimeout(30*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	res, err := seq.Change(context.Background(), "p", Target{BaudRate: 19200})
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, fault.Is(err, fault.DeviceNotResponding))
	assert.Equal(t, RolledBack, res.State)
	assert.False(t, lines.reopened)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "awaiting-ack", AwaitingAck.String())
	assert.True(t, Ambiguous.Terminal())
	assert.False(t, Verifying.Terminal())
}
