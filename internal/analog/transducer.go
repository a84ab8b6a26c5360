// internal/analog/transducer.go
package analog

import (
	"fmt"
	"strings"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// OutputType is the electrical output of a transducer. Each type carries its
// own linear mapping between the electrical range and a 0..1 fraction.
type OutputType string

const (
	Voltage0to10 OutputType = "0-10V"
	Ratiometric  OutputType = "0.5-4.5V"
	Current4to20 OutputType = "4-20mA"
)

// ParseOutputType accepts the canonical names and a few common spellings.
func ParseOutputType(s string) (OutputType, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "0-10v", "0_10v", "voltage":
		return Voltage0to10, nil
	case "0.5-4.5v", "0.5_4.5v", "ratiometric":
		return Ratiometric, nil
	case "4-20ma", "4_20ma", "current":
		return Current4to20, nil
	}
	return "", fmt.Errorf("unknown output type %q", s)
}

// Range is the electrical span mapped to the pressure range.
func (t OutputType) Range() (lo, hi float64) {
	switch t {
	case Voltage0to10:
		return 0, 10
	case Ratiometric:
		return 0.5, 4.5
	case Current4to20:
		return 4, 20
	}
	return 0, 0
}

func (t OutputType) Unit() string {
	if t == Current4to20 {
		return "mA"
	}
	return "V"
}

// Kind selects the sampler input the type is wired to.
func (t OutputType) Kind() SampleKind {
	if t == Current4to20 {
		return KindCurrent
	}
	return KindVoltage
}

func (t OutputType) Valid() bool {
	lo, hi := t.Range()
	return hi > lo
}

// Normalize maps a raw value to its fraction of the electrical span.
// Values outside the span are not clamped.
func (t OutputType) Normalize(raw float64) float64 {
	lo, hi := t.Range()
	return (raw - lo) / (hi - lo)
}

// Denormalize is the inverse of Normalize.
func (t OutputType) Denormalize(frac float64) float64 {
	lo, hi := t.Range()
	return lo + frac*(hi-lo)
}

// TransducerConfig describes one pressure transducer on a sampler channel.
type TransducerConfig struct {
	Name    string
	Stack   int
	Channel int
	Output  OutputType
	MinPSI  float64
	MaxPSI  float64

	// Calibration: (computed + Offset) * Scale. Scale 0 means 1.
	Offset float64
	Scale  float64
}

// Sampler hardware limits.
const (
	StackMax   = 7
	ChannelMin = 1
	ChannelMax = 8
)

func (c TransducerConfig) Validate() error {
	bad := func(format string, args ...any) error {
		return fault.Newf(fault.InvalidParameter, "transducer", "", "%s: "+format, append([]any{c.Name}, args...)...)
	}
	if !c.Output.Valid() {
		return bad("unknown output type %q", c.Output)
	}
	if c.Stack < 0 || c.Stack > StackMax {
		return bad("stack %d out of range 0..%d", c.Stack, StackMax)
	}
	if c.Channel < ChannelMin || c.Channel > ChannelMax {
		return bad("channel %d out of range %d..%d", c.Channel, ChannelMin, ChannelMax)
	}
	if c.MaxPSI <= c.MinPSI {
		return bad("max psi %.2f must exceed min psi %.2f", c.MaxPSI, c.MinPSI)
	}
	return nil
}

func (c TransducerConfig) scale() float64 {
	if c.Scale == 0 {
		return 1
	}
	return c.Scale
}

// Pressure converts a raw electrical value to calibrated PSI.
func (c TransducerConfig) Pressure(raw float64) float64 {
	psi := c.MinPSI + c.Output.Normalize(raw)*(c.MaxPSI-c.MinPSI)
	return (psi + c.Offset) * c.scale()
}

// ExpectedRaw is the electrical value an uncalibrated transducer outputs at
// psi.
func (c TransducerConfig) ExpectedRaw(psi float64) float64 {
	return c.Output.Denormalize((psi - c.MinPSI) / (c.MaxPSI - c.MinPSI))
}
