// internal/config/validate_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper to build a minimal valid configuration quickly
func base() *Config {
	return &Config{
		Sensorbus: SensorbusConfig{
			Ports: []PortConfig{
				{Port: "/dev/ttyUSB0", BaudRate: 9600},
				{Port: "/dev/ttyUSB1", BaudRate: 115200, Driver: "rs485"},
			},
			Devices: []DeviceConfig{
				{Name: "fan-1", Port: "/dev/ttyUSB0", Address: 0x50},
				{Name: "fan-2", Port: "/dev/ttyUSB1", Address: 0x50, Mode: "high-speed", MachineClass: 2},
			},
			Analog: AnalogConfig{
				Transducers: []TransducerConfig{
					{Name: "suction", Stack: 0, Channel: 1, Output: "0-10V", MaxPSI: 500},
				},
			},
		},
	}
}

func slot(n uint16) *uint16 { return &n }

// ---- tests ----

func TestValidate_Base(t *testing.T) {
	require.NoError(t, Validate(base()))
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *SensorbusConfig)
		msg    string
	}{
		{"duplicate port", func(c *SensorbusConfig) { c.Ports[1].Port = "/dev/ttyUSB0" }, "duplicate port"},
		{"empty port", func(c *SensorbusConfig) { c.Ports[0].Port = "" }, "port required"},
		{"unknown driver", func(c *SensorbusConfig) { c.Ports[0].Driver = "usb" }, "unknown driver"},
		{"unsupported baud", func(c *SensorbusConfig) { c.Ports[0].BaudRate = 1200 }, "not supported"},
		{"parity", func(c *SensorbusConfig) { c.Ports[0].Parity = "mark" }, "unknown parity"},
		{"flow control", func(c *SensorbusConfig) { c.Ports[0].FlowControl = "dtr" }, "unknown flow_control"},
		{"data bits", func(c *SensorbusConfig) { c.Ports[0].DataBits = 9 }, "data_bits"},
		{"stop bits", func(c *SensorbusConfig) { c.Ports[0].StopBits = 3 }, "stop_bits"},
		{"undeclared port", func(c *SensorbusConfig) { c.Devices[0].Port = "/dev/ttyS9" }, "not declared"},
		{"two devices on one port", func(c *SensorbusConfig) { c.Devices[1].Port = "/dev/ttyUSB0" }, "already used"},
		{"address zero", func(c *SensorbusConfig) { c.Devices[0].Address = 0 }, "out of range"},
		{"address 248", func(c *SensorbusConfig) { c.Devices[0].Address = 248 }, "out of range"},
		{"mode", func(c *SensorbusConfig) { c.Devices[0].Mode = "turbo" }, "unknown sampling mode"},
		{"machine class", func(c *SensorbusConfig) { c.Devices[0].MachineClass = 5 }, "machine_class"},
		{"non-ascii name", func(c *SensorbusConfig) { c.Devices[0].Name = "lüfter" }, "ASCII"},
		{"slot without sink", func(c *SensorbusConfig) { c.Devices[0].Slot = slot(0) }, "no modbus sink"},
		{"duplicate transducer", func(c *SensorbusConfig) {
			c.Analog.Transducers = append(c.Analog.Transducers, c.Analog.Transducers[0])
		}, "duplicate transducer"},
		{"output type", func(c *SensorbusConfig) { c.Analog.Transducers[0].Output = "1-5V" }, "output"},
		{"channel", func(c *SensorbusConfig) { c.Analog.Transducers[0].Channel = 9 }, "channel"},
		{"range", func(c *SensorbusConfig) { c.Analog.Transducers[0].MaxPSI = 0 }, ""},
		{"modbus endpoint", func(c *SensorbusConfig) { c.Sinks.Modbus = &ModbusSinkConfig{} }, "endpoint required"},
		{"mqtt qos", func(c *SensorbusConfig) { c.Sinks.MQTT = &MQTTSinkConfig{QoS: 3} }, "qos"},
		{"log level", func(c *SensorbusConfig) { c.Logging.Level = "trace" }, "unknown level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg.Sensorbus)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestValidate_SlotCollision(t *testing.T) {
	cfg := base()
	cfg.Sensorbus.Sinks.Modbus = &ModbusSinkConfig{Endpoint: "127.0.0.1:502", UnitID: 1, StatusUnitID: 2}
	cfg.Sensorbus.Devices[0].Slot = slot(3)
	cfg.Sensorbus.Devices[1].Slot = slot(4)
	require.NoError(t, Validate(cfg))

	cfg.Sensorbus.Devices[1].Slot = slot(3)
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot collision")
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := base()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, base(), cfg)
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := base()
	cfg.Sensorbus.Devices[0].Name = "compressor-room-east-fan"
	cfg.Sensorbus.Sinks.Modbus = &ModbusSinkConfig{Endpoint: "127.0.0.1:502"}
	cfg.Sensorbus.Sinks.MQTT = &MQTTSinkConfig{Broker: "tcp://localhost:1883"}
	cfg.Sensorbus.Sinks.Redis = &RedisSinkConfig{Addr: "localhost:6379"}
	require.NoError(t, Validate(cfg))

	Normalize(cfg)
	sb := cfg.Sensorbus

	assert.Equal(t, "info", sb.Logging.Level)
	assert.Equal(t, DefaultPollIntervalMs, sb.Poll.IntervalMs)

	p := sb.Ports[0]
	assert.Equal(t, "native", p.Driver)
	assert.Equal(t, 8, p.DataBits)
	assert.Equal(t, 1, p.StopBits)
	assert.Equal(t, "none", p.Parity)
	assert.Equal(t, "none", p.FlowControl)
	assert.Equal(t, 100, p.ReadTimeoutMs)
	assert.Equal(t, "rs485", sb.Ports[1].Driver)

	assert.Equal(t, "compressor-room-", sb.Devices[0].Name)
	assert.Equal(t, "normal", sb.Devices[0].Mode)
	assert.Equal(t, uint8(1), sb.Devices[0].MachineClass)
	assert.Equal(t, uint8(2), sb.Devices[1].MachineClass)

	assert.Equal(t, "megaind", sb.Analog.Sampler)
	assert.Equal(t, 1.0, sb.Analog.Transducers[0].Scale)

	assert.Equal(t, uint8(1), sb.Sinks.Modbus.UnitID)
	assert.Equal(t, uint8(2), sb.Sinks.Modbus.StatusUnitID)
	assert.Equal(t, "sensorbus", sb.Sinks.MQTT.TopicPrefix)
	assert.Equal(t, "sensorbus", sb.Sinks.MQTT.ClientID)
	assert.Equal(t, "sensorbus", sb.Sinks.Redis.KeyPrefix)
}

func TestNormalize_EnvOverrides(t *testing.T) {
	t.Setenv("SENSORBUS_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("SENSORBUS_MQTT_PASSWORD", "secret")
	t.Setenv("SENSORBUS_REDIS_ADDR", "redis:6379")
	t.Setenv("SENSORBUS_REDIS_DB", "4")

	cfg := base()
	cfg.Sensorbus.Sinks.MQTT = &MQTTSinkConfig{Broker: "tcp://localhost:1883", Username: "plant"}
	cfg.Sensorbus.Sinks.Redis = &RedisSinkConfig{Addr: "localhost:6379"}
	Normalize(cfg)

	assert.Equal(t, "tcp://broker:1883", cfg.Sensorbus.Sinks.MQTT.Broker)
	assert.Equal(t, "plant", cfg.Sensorbus.Sinks.MQTT.Username)
	assert.Equal(t, "secret", cfg.Sensorbus.Sinks.MQTT.Password)
	assert.Equal(t, "redis:6379", cfg.Sensorbus.Sinks.Redis.Addr)
	assert.Equal(t, 4, cfg.Sensorbus.Sinks.Redis.DB)
}

func TestConversions(t *testing.T) {
	cfg := base()
	Normalize(cfg)

	p, ok := cfg.Port("/dev/ttyUSB1")
	require.True(t, ok)
	lc := p.LineConfig()
	assert.Equal(t, 115200, lc.BaudRate)
	assert.Equal(t, "rs485", lc.Driver)
	assert.NoError(t, lc.Validate())

	dev := cfg.Sensorbus.Devices[1].Device(lc.BaudRate)
	assert.NoError(t, dev.Validate())
	assert.Equal(t, "high-speed", dev.Mode.String())
	assert.Equal(t, 115200, dev.BaudRate)

	tc := cfg.Sensorbus.Analog.Transducers[0].Transducer()
	assert.NoError(t, tc.Validate())

	_, ok = cfg.Port("/dev/ttyS0")
	assert.False(t, ok)
}
