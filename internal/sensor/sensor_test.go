// internal/sensor/sensor_test.go
package sensor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/sensorbus/internal/fault"
)

func TestClassifyClassI(t *testing.T) {
	cases := []struct {
		v    float64
		zone Zone
		sev  Severity
	}{
		{0.0, ZoneA, SeverityGood},
		{0.70, ZoneA, SeverityGood},
		{0.71, ZoneB, SeveritySatisfactory},
		{1.79, ZoneB, SeveritySatisfactory},
		{1.8, ZoneC, SeverityUnsatisfactory},
		{4.49, ZoneC, SeverityUnsatisfactory},
		{4.5, ZoneD, SeverityUnacceptable},
		{30, ZoneD, SeverityUnacceptable},
	}
	for _, c := range cases {
		z, s := Classify(c.v, ClassI)
		assert.Equal(t, c.zone, z, "velocity %v", c.v)
		assert.Equal(t, c.sev, s, "velocity %v", c.v)
	}
}

func TestClassifyZeroClassDefaultsToClassI(t *testing.T) {
	z, _ := Classify(1.0, 0)
	assert.Equal(t, ZoneB, z)

	z, _ = Classify(1.0, ClassIV)
	assert.Equal(t, ZoneA, z)
}

func TestDeviceValidate(t *testing.T) {
	ok := Device{Name: "comp-1", Port: "/dev/ttyUSB0", Address: 0x50, BaudRate: 115200}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Address = 0
	assert.True(t, fault.Is(bad.Validate(), fault.InvalidParameter))

	bad = ok
	bad.Address = 250
	assert.True(t, fault.Is(bad.Validate(), fault.InvalidParameter))

	bad = ok
	bad.Port = ""
	assert.True(t, fault.Is(bad.Validate(), fault.InvalidParameter))

	bad = ok
	bad.BaudRate = 0
	assert.True(t, fault.Is(bad.Validate(), fault.InvalidParameter))
}

func TestReadingJSONUsesNames(t *testing.T) {
	r := Reading{Zone: ZoneC, Severity: SeverityUnsatisfactory}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"iso_zone":"C"`)
	assert.Contains(t, string(b), `"severity":"unsatisfactory"`)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("high-speed")
	require.NoError(t, err)
	assert.Equal(t, ModeHighSpeed, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeNormal, m)

	_, err = ParseMode("turbo")
	assert.Error(t, err)
}

func TestFahrenheit(t *testing.T) {
	assert.InDelta(t, 212.0, CelsiusToFahrenheit(100), 1e-9)
	assert.InDelta(t, 32.0, CelsiusToFahrenheit(0), 1e-9)
}
