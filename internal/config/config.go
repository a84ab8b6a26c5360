// internal/config/config.go
package config

type Config struct {
	Sensorbus SensorbusConfig `yaml:"sensorbus"`
}

type SensorbusConfig struct {
	Logging LoggingConfig  `yaml:"logging"`
	Poll    PollConfig     `yaml:"poll"`
	Ports   []PortConfig   `yaml:"ports"`
	Devices []DeviceConfig `yaml:"devices"`
	Analog  AnalogConfig   `yaml:"analog"`
	Sinks   SinksConfig    `yaml:"sinks"`
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs     int  `yaml:"interval_ms"`
	FallbackSingle bool `yaml:"fallback_single"`
	Single         bool `yaml:"single"`
	Attempts       int  `yaml:"attempts"`
	SettleMs       *int `yaml:"settle_ms"`
}

// ---- SERIAL LINES ----

type PortConfig struct {
	Port            string `yaml:"port"`
	BaudRate        int    `yaml:"baud_rate"`
	DataBits        int    `yaml:"data_bits"`
	StopBits        int    `yaml:"stop_bits"`
	Parity          string `yaml:"parity"`
	FlowControl     string `yaml:"flow_control"`
	ReadTimeoutMs   int    `yaml:"read_timeout_ms"`
	Driver          string `yaml:"driver"` // native | rs485 | tarm | sim
	ManualDirection bool   `yaml:"manual_direction"`
}

// ---- SENSORS ----

type DeviceConfig struct {
	Name         string `yaml:"name"`
	Port         string `yaml:"port"`
	Address      uint8  `yaml:"address"`
	Mode         string `yaml:"mode"`          // normal | high-speed
	MachineClass uint8  `yaml:"machine_class"` // ISO 10816 class 1..4

	// Startup configuration writes (opt-in).
	OptimizeForSpeed bool `yaml:"optimize_for_speed"`
	HighSpeed        bool `yaml:"high_speed"`

	// Modbus mirror slot (optional, opt-in).
	Slot *uint16 `yaml:"slot"`
}

// ---- ANALOG ----

type AnalogConfig struct {
	Sampler     string             `yaml:"sampler"` // sampling CLI binary
	TimeoutMs   int                `yaml:"timeout_ms"`
	IntervalMs  int                `yaml:"interval_ms"`
	Transducers []TransducerConfig `yaml:"transducers"`
}

type TransducerConfig struct {
	Name    string  `yaml:"name"`
	Stack   int     `yaml:"stack"`
	Channel int     `yaml:"channel"`
	Output  string  `yaml:"output"` // 0-10V | 0.5-4.5V | 4-20mA
	MinPSI  float64 `yaml:"min_psi"`
	MaxPSI  float64 `yaml:"max_psi"`
	Offset  float64 `yaml:"offset"`
	Scale   float64 `yaml:"scale"`
}

// ---- SINKS ----

type SinksConfig struct {
	Modbus *ModbusSinkConfig `yaml:"modbus"`
	MQTT   *MQTTSinkConfig   `yaml:"mqtt"`
	Redis  *RedisSinkConfig  `yaml:"redis"`
}

// ModbusSinkConfig mirrors readings and device status into a Modbus memory
// server over TCP.
type ModbusSinkConfig struct {
	Endpoint     string `yaml:"endpoint"`
	UnitID       uint8  `yaml:"unit_id"`        // reading memory
	StatusUnitID uint8  `yaml:"status_unit_id"` // status memory
	TimeoutMs    int    `yaml:"timeout_ms"`
}

type MQTTSinkConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retained    bool   `yaml:"retained"`
}

type RedisSinkConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	KeyPrefix  string `yaml:"key_prefix"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}
