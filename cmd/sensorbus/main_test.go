// cmd/sensorbus/main_test.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tamzrod/sensorbus/internal/analog"
	"github.com/tamzrod/sensorbus/internal/fault"
	"github.com/tamzrod/sensorbus/internal/poller"
	"github.com/tamzrod/sensorbus/internal/sensor"
	"github.com/tamzrod/sensorbus/internal/status"
	"github.com/tamzrod/sensorbus/internal/writer"
)

const simYAML = `
sensorbus:
  logging:
    level: error
  poll:
    settle_ms: 0
  ports:
    - port: sim0
      baud_rate: 115200
      driver: sim
  devices:
    - name: fan-1
      port: sim0
      address: 80
  analog:
    transducers:
      - name: suction
        channel: 1
        output: 0-10V
        max_psi: 500
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensorbus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(simYAML), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// ---- commands ----

func TestReadCommand(t *testing.T) {
	out, err := execute(t, "read", writeConfig(t), "--port", "sim0")
	require.NoError(t, err, out)

	var r map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Contains(t, r, "velocity_mm_s")
	assert.Contains(t, r, "iso_zone")
}

func TestReadCommandCapabilities(t *testing.T) {
	out, err := execute(t, "read", writeConfig(t), "--port", "sim0", "--capabilities")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"model": "WTVB01-485"`)
}

func TestReadCommandUnknownPort(t *testing.T) {
	_, err := execute(t, "read", writeConfig(t), "--port", "sim7")
	require.Error(t, err)
}

func TestReconfigureCommand(t *testing.T) {
	out, err := execute(t, "reconfigure", writeConfig(t), "--port", "sim0", "--address", "81", "--baud", "230400")
	require.NoError(t, err, out)
	assert.Contains(t, out, "committed")
}

func TestSpeedCommand(t *testing.T) {
	out, err := execute(t, "speed", writeConfig(t), "--port", "sim0", "--high-speed")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"high_speed": true`)
}

func TestConfigErrorsSurface(t *testing.T) {
	_, err := execute(t, "read", filepath.Join(t.TempDir(), "none.yaml"), "--port", "sim0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config load failed")
}

// ---- orchestrator ----

type captureSink struct{ recs []writer.Record }

func (c *captureSink) Write(_ context.Context, rec writer.Record) error {
	c.recs = append(c.recs, rec)
	return nil
}

type captureStatus struct{ snaps []status.Snapshot }

func (c *captureStatus) WriteStatus(s status.Snapshot) error {
	c.snaps = append(c.snaps, s)
	return nil
}

func TestOrchestratorTracksStatus(t *testing.T) {
	sink := &captureSink{}
	st := &captureStatus{}
	o := newOrchestrator(sink, map[string]writer.StatusWriter{"sim0": st}, zaptest.NewLogger(t))

	dev := sensor.Device{Name: "fan-1", Port: "sim0", Address: 0x50, BaudRate: 115200}
	o.start([]sensor.Device{dev})
	require.Len(t, st.snaps, 1, "boot status")
	assert.Equal(t, status.HealthUnknown, st.snaps[0].Health)
	assert.Equal(t, uint16(0x50), st.snaps[0].Address)
	assert.Equal(t, uint16(7), st.snaps[0].BaudCode)

	out := make(chan poller.PollResult)
	tick := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.loop(ctx, out, tick)
		close(done)
	}()

	fail := poller.PollResult{Port: "sim0", Device: dev, Err: fault.New(fault.DeviceNotResponding, "read", "sim0", nil)}
	out <- fail
	tick <- time.Now()
	tick <- time.Now()
	out <- poller.PollResult{Port: "sim0", Device: dev, Reading: sensor.Reading{Zone: sensor.ZoneC}}

	cancel()
	<-done

	require.Len(t, sink.recs, 2)
	assert.False(t, sink.recs[0].OK())
	assert.True(t, sink.recs[1].OK())

	last := st.snaps[len(st.snaps)-1]
	assert.Equal(t, status.HealthOK, last.Health)
	assert.Zero(t, last.SecondsInError)
	assert.Equal(t, uint16(sensor.ZoneC), last.Zone)

	var sawTwo bool
	for _, s := range st.snaps {
		if s.Health == status.HealthError && s.SecondsInError == 2 {
			sawTwo = true
			assert.Equal(t, uint16(fault.DeviceNotResponding), s.LastErrorCode)
		}
	}
	assert.True(t, sawTwo, "seconds_in_error ticked")
}

// ---- analog ----

type fixedSampler struct {
	v   float64
	err error
}

func (f fixedSampler) Sample(context.Context, int, int, analog.SampleKind) (float64, error) {
	return f.v, f.err
}

func TestSampleOnceDeliversReadingsAndFailures(t *testing.T) {
	path := writeConfig(t)
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	bank, err := buildBank(cfg, fixedSampler{v: 5})
	require.NoError(t, err)
	require.NotNil(t, bank)

	sink := &captureSink{}
	sampleOnce(context.Background(), bank, sink, zaptest.NewLogger(t))
	require.Len(t, sink.recs, 1)
	require.NotNil(t, sink.recs[0].Pressure)
	assert.InDelta(t, 250, sink.recs[0].Pressure.PSI, 1e-9)

	bank, err = buildBank(cfg, fixedSampler{err: fault.New(fault.SamplingFailure, "sample", "", errors.New("exit 1"))})
	require.NoError(t, err)
	sink = &captureSink{}
	sampleOnce(context.Background(), bank, sink, zaptest.NewLogger(t))
	require.Len(t, sink.recs, 1)
	assert.False(t, sink.recs[0].OK())
	assert.Equal(t, "suction", sink.recs[0].Source)

	cfg.Sensorbus.Analog.Transducers = nil
	bank, err = buildBank(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, bank)
}
