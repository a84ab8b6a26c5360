// internal/frame/regmap_test.go
package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/sensorbus/internal/fault"
	"github.com/tamzrod/sensorbus/internal/sensor"
)

func TestDecodeBlockScaling(t *testing.T) {
	block := make([]byte, BlockBytes)
	put := func(reg, v uint16) { require.NoError(t, PutRegister(block, reg, v)) }

	put(RegAccelX, 2048)           // 1 g
	put(RegAccelY, uint16(0xF800)) // -1 g
	put(RegAccelZ, 0)
	put(RegVelocityX, 120) // 1.20 mm/s
	put(RegVelocityY, 250) // 2.50 mm/s
	put(RegVelocityZ, 30)
	put(RegTemperature, 2550) // 25.50 C
	put(RegFrequencyX, 500)   // 50.0 Hz
	put(RegFrequencyY, 1200)
	put(RegFrequencyZ, 7)

	at := time.Unix(1700000000, 0)
	r, err := DecodeBlock(block, sensor.ClassI, at)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, r.AccelX, 1e-9)
	assert.InDelta(t, -1.0, r.AccelY, 1e-9)
	assert.InDelta(t, 1.2, r.VelocityX, 1e-9)
	assert.InDelta(t, 2.5, r.Velocity, 1e-9)
	assert.InDelta(t, 25.5, r.TemperatureC, 1e-9)
	assert.InDelta(t, 77.9, r.TemperatureF, 1e-9)
	assert.InDelta(t, 50.0, r.FrequencyX, 1e-9)
	assert.InDelta(t, 0.7, r.FrequencyZ, 1e-9)
	assert.Equal(t, sensor.ZoneC, r.Zone)
	assert.Equal(t, at, r.At)
}

func TestDecodeBlockNegativeTemperature(t *testing.T) {
	block := make([]byte, BlockBytes)
	require.NoError(t, PutRegister(block, RegTemperature, uint16(0xFC18))) // -1000 -> -10.00 C

	r, err := DecodeBlock(block, sensor.ClassI, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, -10.0, r.TemperatureC, 1e-9)
	assert.InDelta(t, 14.0, r.TemperatureF, 1e-9)
}

func TestDecodeBlockWrongLength(t *testing.T) {
	_, err := DecodeBlock(make([]byte, BlockBytes-2), sensor.ClassI, time.Time{})
	assert.True(t, fault.Is(err, fault.CorruptFrame))
}

func TestPutRegisterOutsideBlock(t *testing.T) {
	block := make([]byte, BlockBytes)
	assert.Error(t, PutRegister(block, RegAddress, 1))
	assert.Error(t, PutRegister(block, BlockEnd+1, 1))
}

func TestMeasuredRegistersInsideBlock(t *testing.T) {
	regs := MeasuredRegisters()
	assert.Len(t, regs, 10)
	for _, r := range regs {
		assert.GreaterOrEqual(t, r, BlockStart)
		assert.LessOrEqual(t, r, BlockEnd)
	}
	regs[0] = 0xFFFF
	assert.Equal(t, RegAccelX, MeasuredRegisters()[0], "returned slice must be a copy")
}

func TestBaudCodes(t *testing.T) {
	c, err := BaudCode(115200)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x07), c)

	c, err = BaudCode(230400)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x08), c)

	_, err = BaudCode(12345)
	assert.True(t, fault.Is(err, fault.InvalidParameter))

	rates := BaudRates()
	assert.Equal(t, 4800, rates[0])
	assert.Equal(t, 230400, rates[len(rates)-1])
}
