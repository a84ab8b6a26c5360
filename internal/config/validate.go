// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/sensorbus/internal/analog"
	"github.com/tamzrod/sensorbus/internal/frame"
	"github.com/tamzrod/sensorbus/internal/logging"
	"github.com/tamzrod/sensorbus/internal/sensor"
	"github.com/tamzrod/sensorbus/internal/simdev"
	"github.com/tamzrod/sensorbus/internal/transport"
)

var knownDrivers = map[string]bool{
	"":                     true,
	transport.DriverNative: true,
	transport.DriverRS485:  true,
	transport.DriverTarm:   true,
	simdev.DriverName:      true,
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	sb := cfg.Sensorbus

	if _, err := logging.ParseLevel(sb.Logging.Level); err != nil {
		return err
	}
	switch sb.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging: unknown format %q", sb.Logging.Format)
	}

	if sb.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll: interval_ms must not be negative")
	}
	if sb.Poll.Attempts < 0 {
		return fmt.Errorf("poll: attempts must not be negative")
	}
	if sb.Poll.SettleMs != nil && *sb.Poll.SettleMs < 0 {
		return fmt.Errorf("poll: settle_ms must not be negative")
	}

	// ------------------------------------------------------------
	// SERIAL LINES
	// ------------------------------------------------------------

	ports := make(map[string]PortConfig, len(sb.Ports))
	for i, p := range sb.Ports {
		if p.Port == "" {
			return fmt.Errorf("ports[%d]: port required", i)
		}
		if _, dup := ports[p.Port]; dup {
			return fmt.Errorf("ports[%d]: duplicate port %q", i, p.Port)
		}
		ports[p.Port] = p

		if !knownDrivers[p.Driver] {
			return fmt.Errorf("port %q: unknown driver %q", p.Port, p.Driver)
		}
		if p.BaudRate != 0 {
			if _, err := frame.BaudCode(p.BaudRate); err != nil {
				return fmt.Errorf("port %q: baud_rate %d not supported by sensors", p.Port, p.BaudRate)
			}
		}
		if _, err := transport.ParseParity(p.Parity); err != nil {
			return fmt.Errorf("port %q: %w", p.Port, err)
		}
		switch p.FlowControl {
		case "", string(transport.FlowNone), string(transport.FlowHardware), string(transport.FlowSoftware):
		default:
			return fmt.Errorf("port %q: unknown flow_control %q", p.Port, p.FlowControl)
		}
		if p.DataBits != 0 && (p.DataBits < 5 || p.DataBits > 8) {
			return fmt.Errorf("port %q: data_bits %d not in 5..8", p.Port, p.DataBits)
		}
		if p.StopBits != 0 && p.StopBits != 1 && p.StopBits != 2 {
			return fmt.Errorf("port %q: stop_bits %d not in {1,2}", p.Port, p.StopBits)
		}
		if p.ReadTimeoutMs < 0 {
			return fmt.Errorf("port %q: read_timeout_ms must not be negative", p.Port)
		}
	}

	// ------------------------------------------------------------
	// SENSORS (one per port)
	// ------------------------------------------------------------

	devicePorts := make(map[string]string)
	slots := make(map[uint16]string)

	for i, d := range sb.Devices {
		if d.Name == "" {
			return fmt.Errorf("devices[%d]: name required", i)
		}
		for j := 0; j < len(d.Name); j++ {
			if d.Name[j] > 0x7F {
				return fmt.Errorf("device %q: name must contain ASCII characters only", d.Name)
			}
		}
		if _, ok := ports[d.Port]; !ok {
			return fmt.Errorf("device %q: port %q is not declared under ports", d.Name, d.Port)
		}
		if prev, taken := devicePorts[d.Port]; taken {
			return fmt.Errorf("device %q: port %q already used by device %q", d.Name, d.Port, prev)
		}
		devicePorts[d.Port] = d.Name

		if d.Address < sensor.AddressMin || d.Address > sensor.AddressMax {
			return fmt.Errorf("device %q: address %d out of range %d..%d",
				d.Name, d.Address, sensor.AddressMin, sensor.AddressMax)
		}
		if _, err := sensor.ParseMode(d.Mode); err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
		if !sensor.MachineClass(d.MachineClass).Valid() {
			return fmt.Errorf("device %q: machine_class %d not in 1..4", d.Name, d.MachineClass)
		}

		if d.Slot != nil {
			if sb.Sinks.Modbus == nil {
				return fmt.Errorf("device %q: slot is set but no modbus sink is configured", d.Name)
			}
			if prev, exists := slots[*d.Slot]; exists {
				return fmt.Errorf("slot collision: slot=%d used by devices %q and %q", *d.Slot, prev, d.Name)
			}
			slots[*d.Slot] = d.Name
		}
	}

	// ------------------------------------------------------------
	// ANALOG
	// ------------------------------------------------------------

	if sb.Analog.TimeoutMs < 0 || sb.Analog.IntervalMs < 0 {
		return fmt.Errorf("analog: timeout_ms and interval_ms must not be negative")
	}
	names := make(map[string]bool)
	for i, t := range sb.Analog.Transducers {
		if t.Name == "" {
			return fmt.Errorf("analog.transducers[%d]: name required", i)
		}
		if names[t.Name] {
			return fmt.Errorf("analog: duplicate transducer %q", t.Name)
		}
		names[t.Name] = true

		ot, err := analog.ParseOutputType(t.Output)
		if err != nil {
			return fmt.Errorf("transducer %q: %w", t.Name, err)
		}
		tc := t.Transducer()
		tc.Output = ot
		if err := tc.Validate(); err != nil {
			return err
		}
	}

	// ------------------------------------------------------------
	// SINKS
	// ------------------------------------------------------------

	if m := sb.Sinks.Modbus; m != nil {
		if m.Endpoint == "" {
			return fmt.Errorf("sinks.modbus: endpoint required")
		}
		if m.UnitID == m.StatusUnitID && m.UnitID != 0 {
			return fmt.Errorf("sinks.modbus: unit_id and status_unit_id must differ")
		}
	}
	if m := sb.Sinks.MQTT; m != nil {
		if m.QoS > 2 {
			return fmt.Errorf("sinks.mqtt: qos %d not in 0..2", m.QoS)
		}
	}
	if r := sb.Sinks.Redis; r != nil && r.TTLSeconds < 0 {
		return fmt.Errorf("sinks.redis: ttl_seconds must not be negative")
	}

	return nil
}
