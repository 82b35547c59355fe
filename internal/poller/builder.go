// internal/poller/builder.go
package poller

import (
	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/energy2mqtt/internal/config"
	pmodbus "github.com/tamzrod/energy2mqtt/internal/poller/modbus"
	"github.com/tamzrod/energy2mqtt/internal/publisher"
	pmqtt "github.com/tamzrod/energy2mqtt/internal/publisher/mqtt"
	"github.com/tamzrod/energy2mqtt/internal/registers"
)

// Build wires the field-bus adapter, register map and broker publisher.
// Nothing dials here: the first tick connects.
func Build(c cfg.Config, log zerolog.Logger) (*Poller, func() error, error) {
	regMap, err := registers.Load(c.Modbus.RegisterMap)
	if err != nil {
		return nil, nil, err
	}

	// Not rejected: a mismatched map surfaces as a decode failure per cycle.
	if span, block := regMap.Span(), int(c.Modbus.Count)*2; span > block {
		log.Warn().
			Int("map_bytes", span).
			Int("block_bytes", block).
			Msg("register map reaches past the polled block; reads will fail to decode")
	}

	bus, err := pmodbus.New(pmodbus.Config{
		Host:     c.Modbus.Host,
		Port:     c.Modbus.Port,
		UnitID:   c.Modbus.ID,
		Timeout:  c.Modbus.Timeout(),
		Function: c.Modbus.Function,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	brokerURL, err := pmqtt.BrokerURL(c.MQTT.Host, c.MQTT.Port)
	if err != nil {
		return nil, nil, err
	}

	broker, err := pmqtt.New(pmqtt.Config{
		Broker:   brokerURL,
		ClientID: c.MQTT.ClientID,
		Username: c.MQTT.Username,
		Password: c.MQTT.Password,
		QoS:      c.MQTT.QoS,
		Retain:   c.MQTT.Retain,
		Timeout:  c.MQTT.Timeout(),
	}, log)
	if err != nil {
		return nil, nil, err
	}

	pub, err := publisher.New(c.MQTT.Prefix, broker)
	if err != nil {
		return nil, nil, err
	}

	p, err := New(
		Config{
			Interval: c.Modbus.ScanInterval(),
			Start:    c.Modbus.Start,
			Count:    c.Modbus.Count,
			Map:      regMap,
		},
		bus,
		pub,
		log,
	)
	if err != nil {
		return nil, nil, err
	}

	// Run closes the session on shutdown; the closer covers early exits.
	return p, bus.Close, nil
}
