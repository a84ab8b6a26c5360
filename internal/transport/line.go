// internal/transport/line.go
package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// Parity of a serial line.
type Parity string

const (
	ParityNone Parity = "none"
	ParityOdd  Parity = "odd"
	ParityEven Parity = "even"
)

// ParseParity accepts none/odd/even and the N/O/E shorthands.
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	}
	return "", fmt.Errorf("unknown parity %q", s)
}

// FlowControl of a serial line.
type FlowControl string

const (
	FlowNone     FlowControl = "none"
	FlowHardware FlowControl = "hardware"
	FlowSoftware FlowControl = "software"
)

// Driver names.
const (
	DriverNative = "native" // go.bug.st/serial, manual RTS direction control
	DriverRS485  = "rs485"  // goburrow/serial, kernel RS-485 mode
	DriverTarm   = "tarm"   // tarm/serial, portable fallback
)

// Line defaults.
const (
	DefaultBaudRate    = 9600
	DefaultDataBits    = 8
	DefaultStopBits    = 1
	DefaultReadTimeout = 100 * time.Millisecond
)

// LineConfig is the full setting of one serial line.
type LineConfig struct {
	Port        string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl
	ReadTimeout time.Duration

	// Driver selects the line driver. Empty means DriverNative.
	Driver string

	// ManualDirection is set for adapters that need the transmit-enable
	// signal toggled around every write.
	ManualDirection bool
}

// WithDefaults fills zero fields.
func (c LineConfig) WithDefaults() LineConfig {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = DefaultDataBits
	}
	if c.StopBits == 0 {
		c.StopBits = DefaultStopBits
	}
	if c.Parity == "" {
		c.Parity = ParityNone
	}
	if c.FlowControl == "" {
		c.FlowControl = FlowNone
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.Driver == "" {
		c.Driver = DriverNative
	}
	return c
}

// Validate rejects settings no driver can apply.
func (c LineConfig) Validate() error {
	bad := func(format string, args ...any) error {
		return fault.Newf(fault.InvalidParameter, "open", c.Port, format, args...)
	}

	if c.Port == "" {
		return bad("port identifier required")
	}
	if c.BaudRate <= 0 {
		return bad("baud rate %d must be > 0", c.BaudRate)
	}
	switch c.DataBits {
	case 5, 6, 7, 8:
	default:
		return bad("data bits %d not in {5,6,7,8}", c.DataBits)
	}
	switch c.StopBits {
	case 1, 2:
	default:
		return bad("stop bits %d not in {1,2}", c.StopBits)
	}
	switch c.Parity {
	case ParityNone, ParityOdd, ParityEven:
	default:
		return bad("parity %q not in {none,odd,even}", c.Parity)
	}
	switch c.FlowControl {
	case FlowNone, FlowHardware, FlowSoftware:
	default:
		return bad("flow control %q not in {none,hardware,software}", c.FlowControl)
	}
	if c.ReadTimeout < 0 {
		return bad("read timeout must not be negative")
	}
	return nil
}

func (c LineConfig) String() string {
	p := "N"
	switch c.Parity {
	case ParityOdd:
		p = "O"
	case ParityEven:
		p = "E"
	}
	return fmt.Sprintf("%s %d %d%s%d", c.Port, c.BaudRate, c.DataBits, p, c.StopBits)
}
