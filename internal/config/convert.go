// internal/config/convert.go
package config

import (
	"time"

	"github.com/tamzrod/sensorbus/internal/analog"
	"github.com/tamzrod/sensorbus/internal/sensor"
	"github.com/tamzrod/sensorbus/internal/transport"
)

// LineConfig converts a normalized port entry.
func (p PortConfig) LineConfig() transport.LineConfig {
	par, _ := transport.ParseParity(p.Parity)
	return transport.LineConfig{
		Port:            p.Port,
		BaudRate:        p.BaudRate,
		DataBits:        p.DataBits,
		StopBits:        p.StopBits,
		Parity:          par,
		FlowControl:     transport.FlowControl(p.FlowControl),
		ReadTimeout:     time.Duration(p.ReadTimeoutMs) * time.Millisecond,
		Driver:          p.Driver,
		ManualDirection: p.ManualDirection,
	}
}

// Device converts a normalized device entry. The baud rate is the line's.
func (d DeviceConfig) Device(baud int) sensor.Device {
	mode, _ := sensor.ParseMode(d.Mode)
	return sensor.Device{
		Name:         d.Name,
		Port:         d.Port,
		Address:      d.Address,
		BaudRate:     baud,
		Mode:         mode,
		MachineClass: sensor.MachineClass(d.MachineClass),
	}
}

// Transducer converts a transducer entry.
func (t TransducerConfig) Transducer() analog.TransducerConfig {
	ot, _ := analog.ParseOutputType(t.Output)
	return analog.TransducerConfig{
		Name:    t.Name,
		Stack:   t.Stack,
		Channel: t.Channel,
		Output:  ot,
		MinPSI:  t.MinPSI,
		MaxPSI:  t.MaxPSI,
		Offset:  t.Offset,
		Scale:   t.Scale,
	}
}

// Port returns the port entry named id.
func (c *Config) Port(id string) (PortConfig, bool) {
	for _, p := range c.Sensorbus.Ports {
		if p.Port == id {
			return p, true
		}
	}
	return PortConfig{}, false
}
