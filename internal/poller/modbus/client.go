// internal/poller/modbus/client.go
package modbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"
)

// Function codes the adapter can read a block with.
const (
	FuncHoldingRegisters uint8 = 3
	FuncInputRegisters   uint8 = 4
)

// ErrNotConnected is returned by ReadBlock without an open session.
var ErrNotConnected = errors.New("modbus client: not connected")

// Config is minimal transport config.
type Config struct {
	Host     string
	Port     int
	UnitID   uint8
	Timeout  time.Duration
	Function uint8
}

// Client implements poller.FieldBus over Modbus TCP.
// It is not safe for concurrent use; the poller runs one action at a time.
type Client struct {
	cfg      Config
	endpoint string
	log      zerolog.Logger

	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// New validates config. It does not dial.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("modbus client: host required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("modbus client: port %d out of range", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	switch cfg.Function {
	case 0:
		cfg.Function = FuncInputRegisters
	case FuncHoldingRegisters, FuncInputRegisters:
	default:
		return nil, fmt.Errorf("modbus client: unsupported function code %d", cfg.Function)
	}

	endpoint := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return &Client{
		cfg:      cfg,
		endpoint: endpoint,
		log:      log.With().Str("component", "modbus").Str("endpoint", endpoint).Uint8("unit_id", cfg.UnitID).Logger(),
	}, nil
}

// Endpoint returns host:port.
func (c *Client) Endpoint() string { return c.endpoint }

// Connected reports whether a session is open.
func (c *Client) Connected() bool { return c.handler != nil }

// Connect closes any open session first so at most one exists.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.handler != nil {
		if err := c.Close(); err != nil {
			c.log.Debug().Err(err).Msg("closing previous session")
		}
	}

	h := modbus.NewTCPClientHandler(c.endpoint)
	h.Timeout = c.cfg.Timeout
	h.SlaveId = c.cfg.UnitID

	if err := h.Connect(); err != nil {
		return err
	}

	c.handler = h
	c.client = modbus.NewClient(h)
	c.log.Debug().Msg("session open")
	return nil
}

// ReadBlock reads count registers from start and returns their raw bytes.
// Transport failures close the session; Modbus exceptions keep it open.
func (c *Client) ReadBlock(ctx context.Context, start, count uint16) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.client == nil {
		return nil, ErrNotConnected
	}

	var (
		b   []byte
		err error
	)
	switch c.cfg.Function {
	case FuncHoldingRegisters:
		b, err = c.client.ReadHoldingRegisters(start, count)
	default:
		b, err = c.client.ReadInputRegisters(start, count)
	}

	if err != nil {
		if isConnectionError(err) {
			c.log.Debug().Err(err).Msg("transport failure, dropping session")
			_ = c.Close()
		}
		return nil, err
	}

	if len(b) != int(count)*2 {
		// framing is out of step with the device
		_ = c.Close()
		return nil, fmt.Errorf("modbus: short block: got %d bytes, want %d", len(b), int(count)*2)
	}
	return b, nil
}

// Close closes the TCP connection. Safe to call without a session.
func (c *Client) Close() error {
	if c.handler == nil {
		return nil
	}
	err := c.handler.Close()
	c.handler = nil
	c.client = nil
	return err
}

// ---- helpers ----

// isConnectionError separates dead transports from device-level rejections.
func isConnectionError(err error) bool {
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
