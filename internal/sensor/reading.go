// internal/sensor/reading.go
package sensor

import "time"

// Reading is one complete vibration/temperature snapshot.
// It is never partially populated.
type Reading struct {
	Velocity  float64 `json:"velocity_mm_s"` // max of the three axes
	VelocityX float64 `json:"velocity_x_mm_s"`
	VelocityY float64 `json:"velocity_y_mm_s"`
	VelocityZ float64 `json:"velocity_z_mm_s"`

	TemperatureC float64 `json:"temperature_c"`
	TemperatureF float64 `json:"temperature_f"`

	AccelX float64 `json:"accel_x_g"`
	AccelY float64 `json:"accel_y_g"`
	AccelZ float64 `json:"accel_z_g"`

	FrequencyX float64 `json:"frequency_x_hz"`
	FrequencyY float64 `json:"frequency_y_hz"`
	FrequencyZ float64 `json:"frequency_z_hz"`

	Zone     Zone     `json:"iso_zone"`
	Severity Severity `json:"severity"`

	At time.Time `json:"at"`
}

// CelsiusToFahrenheit converts a temperature.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
