// Package valkey is a reference implementation of the connector.Connector
// contract (C15) wrapping valkey-io/valkey-go. It is not imported by any
// core package — only the connector contract is core, not a concrete
// catalogue — and exists so cmd/squad-aegis and tests have a
// real factory to register against the connector registry.
//
// Grounded on internal/valkey/client.go's Config{Host, Port, Password,
// Database} shape and valkey.NewClient(valkey.ClientOption{...}) wiring,
// narrowed to the {name, isConnected, connect, disconnect} contract C15
// requires: Connect dials and PINGs, Disconnect closes the client.
package valkey

import (
	"context"
	"fmt"
	"sync/atomic"

	valkeygo "github.com/valkey-io/valkey-go"
)

// Config configures a Connector instance.
type Config struct {
	Host     string
	Port     int
	Password string
	Database int
}

// Connector is a connector.Connector backed by a Valkey/Redis client.
type Connector struct {
	cfg    Config
	client valkeygo.Client

	connected atomic.Bool
}

// New constructs a Connector from a raw settings map, the shape
// connector.Factory expects. "host" is required; "port" defaults to 6379.
func New(settings map[string]interface{}) (*Connector, error) {
	host, _ := settings["host"].(string)
	if host == "" {
		return nil, fmt.Errorf("valkey: \"host\" is required")
	}

	port := 6379
	if p, ok := settings["port"].(int); ok && p > 0 {
		port = p
	} else if p, ok := settings["port"].(float64); ok && p > 0 {
		port = int(p)
	}

	password, _ := settings["password"].(string)

	database := 0
	if d, ok := settings["database"].(int); ok {
		database = d
	} else if d, ok := settings["database"].(float64); ok {
		database = int(d)
	}

	return &Connector{cfg: Config{Host: host, Port: port, Password: password, Database: database}}, nil
}

// Name implements connector.Connector.
func (c *Connector) Name() string { return "valkey" }

// IsConnected implements connector.Connector.
func (c *Connector) IsConnected() bool { return c.connected.Load() }

// Connect dials the Valkey server and issues a PING to confirm
// reachability before reporting success.
func (c *Connector) Connect(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	opts := valkeygo.ClientOption{InitAddress: []string{address}, SelectDB: c.cfg.Database}
	if c.cfg.Password != "" {
		opts.Password = c.cfg.Password
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return fmt.Errorf("valkey: creating client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return fmt.Errorf("valkey: ping: %w", err)
	}

	c.client = client
	c.connected.Store(true)
	return nil
}

// Disconnect closes the Valkey client.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	c.connected.Store(false)
	c.client.Close()
	return nil
}

// Client returns the underlying valkey.Client, nil until Connect succeeds.
// Plugins that need raw command access beyond the connector contract use
// this escape hatch, same as discord.Connector.Session.
func (c *Connector) Client() valkeygo.Client { return c.client }
