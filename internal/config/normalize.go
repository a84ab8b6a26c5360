// internal/config/normalize.go
package config

import (
	"os"
	"strconv"

	"github.com/tamzrod/sensorbus/internal/analog"
	"github.com/tamzrod/sensorbus/internal/sensor"
	"github.com/tamzrod/sensorbus/internal/status"
	"github.com/tamzrod/sensorbus/internal/transport"
)

// Defaults applied by Normalize.
const (
	DefaultPollIntervalMs   = 1000
	DefaultSinkTimeoutMs    = 1000
	DefaultTopicPrefix      = "sensorbus"
	DefaultKeyPrefix        = "sensorbus"
	DefaultMQTTClientID     = "sensorbus"
	DefaultAnalogIntervalMs = 5000
)

// Environment overrides for sink credentials.
const (
	EnvMQTTPrefix  = "SENSORBUS_MQTT"
	EnvRedisPrefix = "SENSORBUS_REDIS"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	sb := &cfg.Sensorbus

	if sb.Logging.Level == "" {
		sb.Logging.Level = "info"
	}
	if sb.Logging.Format == "" {
		sb.Logging.Format = "json"
	}

	if sb.Poll.IntervalMs == 0 {
		sb.Poll.IntervalMs = DefaultPollIntervalMs
	}

	for i := range sb.Ports {
		p := &sb.Ports[i]
		if p.BaudRate == 0 {
			p.BaudRate = transport.DefaultBaudRate
		}
		if p.DataBits == 0 {
			p.DataBits = transport.DefaultDataBits
		}
		if p.StopBits == 0 {
			p.StopBits = transport.DefaultStopBits
		}
		par, _ := transport.ParseParity(p.Parity)
		p.Parity = string(par)
		if p.FlowControl == "" {
			p.FlowControl = string(transport.FlowNone)
		}
		if p.ReadTimeoutMs == 0 {
			p.ReadTimeoutMs = int(transport.DefaultReadTimeout.Milliseconds())
		}
		if p.Driver == "" {
			p.Driver = transport.DriverNative
		}
	}

	for i := range sb.Devices {
		d := &sb.Devices[i]
		if len(d.Name) > status.DeviceNameMaxChars {
			d.Name = d.Name[:status.DeviceNameMaxChars]
		}
		if d.Mode == "" {
			d.Mode = sensor.ModeNormal.String()
		}
		if d.MachineClass == 0 {
			d.MachineClass = uint8(sensor.ClassI)
		}
	}

	if sb.Analog.Sampler == "" {
		sb.Analog.Sampler = analog.DefaultSamplerBinary
	}
	if sb.Analog.IntervalMs == 0 {
		sb.Analog.IntervalMs = DefaultAnalogIntervalMs
	}
	for i := range sb.Analog.Transducers {
		t := &sb.Analog.Transducers[i]
		if t.Scale == 0 {
			t.Scale = 1
		}
		if ot, err := analog.ParseOutputType(t.Output); err == nil {
			t.Output = string(ot)
		}
	}

	if m := sb.Sinks.Modbus; m != nil {
		if m.TimeoutMs == 0 {
			m.TimeoutMs = DefaultSinkTimeoutMs
		}
		if m.UnitID == 0 {
			m.UnitID = 1
		}
		if m.StatusUnitID == 0 {
			m.StatusUnitID = m.UnitID + 1
		}
	}
	if m := sb.Sinks.MQTT; m != nil {
		m.loadFromEnv(EnvMQTTPrefix)
		if m.ClientID == "" {
			m.ClientID = DefaultMQTTClientID
		}
		if m.TopicPrefix == "" {
			m.TopicPrefix = DefaultTopicPrefix
		}
	}
	if r := sb.Sinks.Redis; r != nil {
		r.loadFromEnv(EnvRedisPrefix)
		if r.KeyPrefix == "" {
			r.KeyPrefix = DefaultKeyPrefix
		}
	}
}

func (c *MQTTSinkConfig) loadFromEnv(prefix string) {
	if v := os.Getenv(prefix + "_BROKER"); v != "" {
		c.Broker = v
	}
	if v := os.Getenv(prefix + "_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv(prefix + "_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv(prefix + "_PASSWORD"); v != "" {
		c.Password = v
	}
}

func (c *RedisSinkConfig) loadFromEnv(prefix string) {
	if v := os.Getenv(prefix + "_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(prefix + "_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv(prefix + "_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DB = n
		}
	}
}
