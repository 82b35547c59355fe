// internal/publisher/mqtt/client.go
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/energy2mqtt/internal/publisher"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: timed out waiting for broker")

// disconnectQuiesce is how long Disconnect waits for in-flight work (ms).
const disconnectQuiesce = 250

// Config holds MQTT session configuration.
type Config struct {
	// Broker is a paho broker URI (tcp://host:1883, ssl://host:8883).
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool

	// Timeout bounds the connect and each publish acknowledgement.
	Timeout time.Duration
}

// Client implements publisher.Broker with one paho session per Send.
type Client struct {
	cfg Config
	log zerolog.Logger

	newClient func(*paho.ClientOptions) paho.Client
}

// New validates config. It does not connect.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: qos %d out of range", cfg.QoS)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		cfg:       cfg,
		log:       log.With().Str("component", "mqtt").Str("broker", cfg.Broker).Logger(),
		newClient: paho.NewClient,
	}, nil
}

// Send opens a session, publishes msgs in order, and disconnects.
// It stops at the first failed publish.
func (c *Client) Send(ctx context.Context, msgs []publisher.Message) error {
	opts := paho.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetClientID(c.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(c.cfg.Timeout)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
	}
	if c.cfg.Password != "" {
		opts.SetPassword(c.cfg.Password)
	}

	cli := c.newClient(opts)
	if err := c.wait(ctx, cli.Connect()); err != nil {
		// A connect we gave up on may still complete; stop it.
		cli.Disconnect(0)
		return fmt.Errorf("connect %s: %w", c.cfg.Broker, err)
	}
	defer cli.Disconnect(disconnectQuiesce)

	for _, m := range msgs {
		if err := c.wait(ctx, cli.Publish(m.Topic, c.cfg.QoS, c.cfg.Retain, m.Payload)); err != nil {
			return fmt.Errorf("publish %s: %w", m.Topic, err)
		}
	}

	c.log.Debug().Int("messages", len(msgs)).Msg("session published")
	return nil
}

func (c *Client) wait(ctx context.Context, tok paho.Token) error {
	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}

// BrokerURL turns a host as users write it (mqtt://10.0.0.5, mqtts://b, b)
// plus a port into a paho broker URI. A port already in host wins.
func BrokerURL(host string, port int) (string, error) {
	scheme, rest := "tcp", host
	if i := strings.Index(host, "://"); i >= 0 {
		scheme, rest = strings.ToLower(host[:i]), host[i+3:]
	}

	switch scheme {
	case "mqtt", "tcp":
		scheme = "tcp"
	case "mqtts", "ssl", "tls":
		scheme = "ssl"
	default:
		return "", fmt.Errorf("mqtt: unsupported scheme %q", scheme)
	}

	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return "", errors.New("mqtt: host required")
	}

	if _, _, err := net.SplitHostPort(rest); err == nil {
		return scheme + "://" + rest, nil
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("mqtt: port %d out of range", port)
	}
	return scheme + "://" + net.JoinHostPort(rest, strconv.Itoa(port)), nil
}
