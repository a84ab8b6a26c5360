// internal/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
sensorbus:
  logging:
    level: debug
  poll:
    interval_ms: 500
    fallback_single: true
  ports:
    - port: /dev/ttyUSB0
      baud_rate: 115200
      driver: rs485
  devices:
    - name: fan-1
      port: /dev/ttyUSB0
      address: 80
      slot: 2
  analog:
    transducers:
      - name: discharge
        channel: 2
        output: 4-20mA
        max_psi: 300
  sinks:
    modbus:
      endpoint: 127.0.0.1:502
    redis:
      addr: localhost:6379
      ttl_seconds: 60
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	sb := cfg.Sensorbus
	assert.Equal(t, "debug", sb.Logging.Level)
	assert.Equal(t, 500, sb.Poll.IntervalMs)
	assert.True(t, sb.Poll.FallbackSingle)
	require.Len(t, sb.Devices, 1)
	assert.Equal(t, uint8(0x50), sb.Devices[0].Address)
	require.NotNil(t, sb.Devices[0].Slot)
	assert.Equal(t, uint16(2), *sb.Devices[0].Slot)
	assert.Equal(t, "4-20mA", sb.Analog.Transducers[0].Output)
	require.NotNil(t, sb.Sinks.Redis)
	assert.Nil(t, sb.Sinks.MQTT)

	require.NoError(t, Validate(cfg))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("sensorbus:\n  pollz: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: decode")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorbus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Sensorbus.Ports, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
