// internal/sensor/capabilities.go
package sensor

// Capabilities is static metadata about a sensor model. It never requires
// bus traffic.
type Capabilities struct {
	Model string `json:"model"`

	// Registers of the measurement block read by one burst.
	BlockStart uint16 `json:"block_start"`
	BlockLen   uint16 `json:"block_len"`

	BaudRates       []int `json:"baud_rates"`
	AddressMin      uint8 `json:"address_min"`
	AddressMax      uint8 `json:"address_max"`
	MaxOutputRateHz int   `json:"max_output_rate_hz"`

	HighSpeed bool `json:"high_speed"`
	Mode      Mode `json:"-"`

	Measurements []string `json:"measurements"`
}
