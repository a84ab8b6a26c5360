// internal/writer/mirror.go
package writer

import (
	"context"
	"fmt"
	"math"

	"github.com/tamzrod/sensorbus/internal/sensor"
)

// endpointClient is the exact contract the Modbus writers use.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// ---- READING BLOCK LAYOUT ----

// ReadingRegs is the fixed number of registers per device in the reading mirror.
const ReadingRegs = 16

// Register offsets inside one reading block. Scaled values are signed
// 16-bit two's complement.
const (
	RegVelocity     = 0 // mm/s x100
	RegVelocityX    = 1
	RegVelocityY    = 2
	RegVelocityZ    = 3
	RegTemperatureC = 4 // C x100
	RegAccelX       = 5 // g x1000
	RegAccelY       = 6
	RegAccelZ       = 7
	RegFrequencyX   = 8 // Hz x10
	RegFrequencyY   = 9
	RegFrequencyZ   = 10
	RegZone         = 11
	RegSeverity     = 12
	// 13..15 reserved
)

// EncodeReading lays out one reading as a register block.
func EncodeReading(r sensor.Reading) []uint16 {
	regs := make([]uint16, ReadingRegs)

	regs[RegVelocity] = scaled(r.Velocity, 100)
	regs[RegVelocityX] = scaled(r.VelocityX, 100)
	regs[RegVelocityY] = scaled(r.VelocityY, 100)
	regs[RegVelocityZ] = scaled(r.VelocityZ, 100)
	regs[RegTemperatureC] = scaled(r.TemperatureC, 100)
	regs[RegAccelX] = scaled(r.AccelX, 1000)
	regs[RegAccelY] = scaled(r.AccelY, 1000)
	regs[RegAccelZ] = scaled(r.AccelZ, 1000)
	regs[RegFrequencyX] = scaled(r.FrequencyX, 10)
	regs[RegFrequencyY] = scaled(r.FrequencyY, 10)
	regs[RegFrequencyZ] = scaled(r.FrequencyZ, 10)
	regs[RegZone] = uint16(r.Zone)
	regs[RegSeverity] = uint16(r.Severity)

	return regs
}

func scaled(v, factor float64) uint16 {
	x := math.Round(v * factor)
	switch {
	case math.IsNaN(x):
		x = 0
	case x > math.MaxInt16:
		x = math.MaxInt16
	case x < math.MinInt16:
		x = math.MinInt16
	}
	return uint16(int16(x))
}

// MirrorPlan maps ports to reading slots on one unit.
type MirrorPlan struct {
	UnitID uint8
	Slots  map[string]uint16 // port -> slot
}

type modbusMirror struct {
	plan MirrorPlan
	cli  endpointClient
}

// NewModbusMirror writes successful vibration readings into holding
// registers at slot*ReadingRegs.
func NewModbusMirror(plan MirrorPlan, cli endpointClient) Writer {
	return &modbusMirror{plan: plan, cli: cli}
}

func (m *modbusMirror) Write(_ context.Context, rec Record) error {
	if rec.Kind != KindVibration || !rec.OK() || rec.Vibration == nil {
		return nil
	}
	slot, ok := m.plan.Slots[rec.Port]
	if !ok {
		return nil
	}
	if m.cli == nil {
		return fmt.Errorf("modbus mirror: missing client")
	}

	addr := slot * ReadingRegs
	if err := m.cli.WriteRegisters(m.plan.UnitID, addr, EncodeReading(*rec.Vibration)); err != nil {
		return fmt.Errorf("modbus mirror: unit=%d slot=%d addr=%d err=%w", m.plan.UnitID, slot, addr, err)
	}
	return nil
}
