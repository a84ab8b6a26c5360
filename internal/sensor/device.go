// internal/sensor/device.go
package sensor

import (
	"fmt"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// Mode is the device sampling mode.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeHighSpeed
)

func (m Mode) String() string {
	if m == ModeHighSpeed {
		return "high-speed"
	}
	return "normal"
}

// ParseMode accepts "normal" and "high-speed" (empty means normal).
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "normal":
		return ModeNormal, nil
	case "high-speed", "high_speed", "highspeed":
		return ModeHighSpeed, nil
	}
	return ModeNormal, fmt.Errorf("unknown sampling mode %q", s)
}

// Bus address limits for individually addressed serial devices.
const (
	AddressMin uint8 = 1
	AddressMax uint8 = 247
)

// Device is the logical identity of one polled sensor.
// It is distinct from the serial line it is reached through.
type Device struct {
	Name         string
	Port         string
	Address      uint8
	BaudRate     int
	Mode         Mode
	MachineClass MachineClass
}

// Validate checks the fields the engine relies on.
func (d Device) Validate() error {
	if d.Port == "" {
		return fault.Newf(fault.InvalidParameter, "device", "", "device %q: port required", d.Name)
	}
	if d.Address < AddressMin || d.Address > AddressMax {
		return fault.Newf(fault.InvalidParameter, "device", d.Port,
			"device %q: address %d out of range %d..%d", d.Name, d.Address, AddressMin, AddressMax)
	}
	if d.BaudRate <= 0 {
		return fault.Newf(fault.InvalidParameter, "device", d.Port,
			"device %q: baud rate must be > 0", d.Name)
	}
	if !d.MachineClass.Valid() {
		return fault.Newf(fault.InvalidParameter, "device", d.Port,
			"device %q: unknown machine class %d", d.Name, d.MachineClass)
	}
	return nil
}

func (d Device) String() string {
	return fmt.Sprintf("%s@%s/0x%02X/%d", d.Name, d.Port, d.Address, d.BaudRate)
}
