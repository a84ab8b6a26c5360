// internal/frame/regmap.go
package frame

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/tamzrod/sensorbus/internal/fault"
	"github.com/tamzrod/sensorbus/internal/sensor"
)

// Vibration sensor register map. These values are fixed by the device
// firmware and MUST NOT be configurable.

// ---- CONFIGURATION REGISTERS ----

const (
	RegSave         uint16 = 0x00
	RegOutputRate   uint16 = 0x03
	RegBaud         uint16 = 0x04
	RegAddress      uint16 = 0x1A
	RegHighSpeed    uint16 = 0x62
	RegDetectPeriod uint16 = 0x65
	RegUnlock       uint16 = 0x69
)

const (
	UnlockKey       uint16 = 0xB588
	SaveNow         uint16 = 0x0000
	OutputRateMax   uint16 = 0x0B // 200 Hz
	DetectPeriodMin uint16 = 1
	HighSpeedOn     uint16 = 0x0001
)

// ---- MEASUREMENT BLOCK ----

const (
	RegAccelX uint16 = 0x34
	RegAccelY uint16 = 0x35
	RegAccelZ uint16 = 0x36

	RegVelocityX uint16 = 0x3A
	RegVelocityY uint16 = 0x3B
	RegVelocityZ uint16 = 0x3C

	RegTemperature uint16 = 0x40

	RegFrequencyX uint16 = 0x44
	RegFrequencyY uint16 = 0x45
	RegFrequencyZ uint16 = 0x46

	// BlockStart..BlockEnd is the contiguous range read by one burst.
	BlockStart = RegAccelX
	BlockEnd   = RegFrequencyZ
	BlockLen   = BlockEnd - BlockStart + 1

	// BlockBytes is the raw size of the block payload.
	BlockBytes = 2 * int(BlockLen)
)

// measured lists the registers a reading needs, in register map order.
// Registers inside the block but not listed (angular velocity, angle,
// displacement) are not part of a Reading.
var measured = []uint16{
	RegAccelX, RegAccelY, RegAccelZ,
	RegVelocityX, RegVelocityY, RegVelocityZ,
	RegTemperature,
	RegFrequencyX, RegFrequencyY, RegFrequencyZ,
}

// MeasuredRegisters returns the registers a single-register read must fetch.
func MeasuredRegisters() []uint16 {
	out := make([]uint16, len(measured))
	copy(out, measured)
	return out
}

// PutRegister stores one register value at its position in a block buffer.
func PutRegister(block []byte, reg, value uint16) error {
	if reg < BlockStart || reg > BlockEnd || len(block) != BlockBytes {
		return fault.Newf(fault.InvalidParameter, "block", "", "register 0x%02X outside block", reg)
	}
	binary.BigEndian.PutUint16(block[2*int(reg-BlockStart):], value)
	return nil
}

func word(block []byte, reg uint16) uint16 {
	return binary.BigEndian.Uint16(block[2*int(reg-BlockStart):])
}

// ---- SCALING ----

func accelG(raw uint16) float64      { return float64(int16(raw)) / 32768 * 16 }
func velocityMMS(raw uint16) float64 { return float64(raw) / 100 }
func celsius(raw uint16) float64     { return float64(int16(raw)) / 100 }
func hertz(raw uint16) float64       { return float64(raw) / 10 }

// DecodeBlock decodes a raw measurement block in one pass, in register map
// order. The block must be exactly BlockBytes long.
func DecodeBlock(block []byte, class sensor.MachineClass, at time.Time) (sensor.Reading, error) {
	if len(block) != BlockBytes {
		return sensor.Reading{}, fault.Newf(fault.CorruptFrame, "block", "",
			"block has %d bytes, want %d", len(block), BlockBytes)
	}

	r := sensor.Reading{
		AccelX: accelG(word(block, RegAccelX)),
		AccelY: accelG(word(block, RegAccelY)),
		AccelZ: accelG(word(block, RegAccelZ)),

		VelocityX: velocityMMS(word(block, RegVelocityX)),
		VelocityY: velocityMMS(word(block, RegVelocityY)),
		VelocityZ: velocityMMS(word(block, RegVelocityZ)),

		TemperatureC: celsius(word(block, RegTemperature)),

		FrequencyX: hertz(word(block, RegFrequencyX)),
		FrequencyY: hertz(word(block, RegFrequencyY)),
		FrequencyZ: hertz(word(block, RegFrequencyZ)),

		At: at,
	}
	r.TemperatureF = sensor.CelsiusToFahrenheit(r.TemperatureC)
	r.Velocity = math.Max(r.VelocityX, math.Max(r.VelocityY, r.VelocityZ))
	r.Zone, r.Severity = sensor.Classify(r.Velocity, class)

	return r, nil
}

// ---- BAUD CODES ----

var baudCodes = map[int]uint16{
	4800:   0x02,
	9600:   0x03,
	19200:  0x04,
	38400:  0x05,
	57600:  0x06,
	115200: 0x07,
	230400: 0x08,
}

// BaudCode returns the register value selecting baud.
func BaudCode(baud int) (uint16, error) {
	c, ok := baudCodes[baud]
	if !ok {
		return 0, fault.Newf(fault.InvalidParameter, "baud", "", "unsupported device baud rate %d", baud)
	}
	return c, nil
}

// BaudRates lists the device-supported baud rates in ascending order.
func BaudRates() []int {
	out := make([]int, 0, len(baudCodes))
	for b := range baudCodes {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}
