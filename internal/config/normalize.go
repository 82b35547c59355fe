// internal/config/normalize.go
package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// Topic prefix: no surrounding spaces or slashes, topics add their own.
	cfg.MQTT.Prefix = strings.Trim(strings.TrimSpace(cfg.MQTT.Prefix), "/")

	cfg.Modbus.Host = strings.TrimSpace(cfg.Modbus.Host)
	cfg.MQTT.Host = strings.TrimSpace(cfg.MQTT.Host)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
}
