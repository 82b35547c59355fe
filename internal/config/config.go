// internal/config/config.go
package config

import "time"

// EnvPrefix prefixes every environment variable that mirrors a flag.
const EnvPrefix = "ENERGY2MQTT"

type Config struct {
	Modbus  ModbusConfig  `yaml:"modbus"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ---- SOURCE DEVICE ----

type ModbusConfig struct {
	Host           string `yaml:"host" validate:"required"`
	Port           int    `yaml:"port" validate:"required,min=1,max=65535"`
	ID             uint8  `yaml:"id" validate:"max=247"`
	ScanIntervalMs int    `yaml:"scan_interval_ms" validate:"min=1"`
	TimeoutMs      int    `yaml:"timeout_ms" validate:"min=1"`

	// READ GEOMETRY: one block per cycle
	Function uint8  `yaml:"function" validate:"oneof=3 4"`
	Start    uint16 `yaml:"start"`
	Count    uint16 `yaml:"count" validate:"min=1,max=125"`

	// RegisterMap is a YAML/JSON file; empty selects the built-in SDM630 map.
	RegisterMap string `yaml:"register_map"`
}

// ---- BROKER ----

type MQTTConfig struct {
	Host      string `yaml:"host" validate:"required"`
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Prefix    string `yaml:"prefix" validate:"required"`
	ClientID  string `yaml:"client_id" validate:"required"`
	QoS       uint8  `yaml:"qos" validate:"max=2"`
	Retain    bool   `yaml:"retain"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"min=1"`
}

// ---- AMBIENT ----

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

type MetricsConfig struct {
	// Listen enables the /metrics endpoint when set (e.g. ":9105").
	Listen string `yaml:"listen"`
}

// Default returns every default; required fields stay empty.
func Default() Config {
	return Config{
		Modbus: ModbusConfig{
			ID:             1,
			ScanIntervalMs: 3000,
			TimeoutMs:      5000,
			Function:       4,
			Start:          0,
			Count:          50,
		},
		MQTT: MQTTConfig{
			Port:      1883,
			Prefix:    "energy",
			ClientID:  "ENERGY2MQTT",
			TimeoutMs: 10000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ---- derived durations ----

func (m ModbusConfig) ScanInterval() time.Duration {
	return time.Duration(m.ScanIntervalMs) * time.Millisecond
}

func (m ModbusConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

func (m MQTTConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutMs) * time.Millisecond
}
