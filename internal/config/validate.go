// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// ------------------------------------------------------------
	// READ GEOMETRY
	// ------------------------------------------------------------

	if end := int(cfg.Modbus.Start) + int(cfg.Modbus.Count); end > 65536 {
		return fmt.Errorf(
			"config: register block %d+%d runs past the address space",
			cfg.Modbus.Start,
			cfg.Modbus.Count,
		)
	}

	// ------------------------------------------------------------
	// TOPICS
	// ------------------------------------------------------------

	prefix := strings.TrimSpace(cfg.MQTT.Prefix)
	if strings.ContainsAny(prefix, "+#") {
		return fmt.Errorf("config: mqtt prefix %q must not contain wildcards", cfg.MQTT.Prefix)
	}
	if strings.Trim(prefix, "/") == "" {
		return fmt.Errorf("config: mqtt prefix %q is empty", cfg.MQTT.Prefix)
	}

	return nil
}
