// Package discord is a reference implementation of the connector.Connector
// contract (C15) wrapping bwmarrin/discordgo. It is not imported by any
// core package — only the connector contract is core, not a concrete
// catalogue — and exists so cmd/squad-aegis and tests have a real factory
// to register against the connector registry.
//
// Grounded on connectors/discord/discord.go's session lifecycle
// (discordgo.New, Session.Open, Session.Close), generalized to the
// {name, isConnected, connect, disconnect} shape C15 requires instead of a
// database-row-backed connector definition.
package discord

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// Config configures a Connector instance.
type Config struct {
	Token string
}

// Connector is a connector.Connector backed by a Discord bot session.
type Connector struct {
	cfg     Config
	session *discordgo.Session

	connected atomic.Bool
}

// New constructs a Connector from a raw settings map, the shape
// connector.Factory expects. "token" is required.
func New(settings map[string]interface{}) (*Connector, error) {
	token, _ := settings["token"].(string)
	if token == "" {
		return nil, fmt.Errorf("discord: \"token\" is required")
	}
	return &Connector{cfg: Config{Token: token}}, nil
}

// Name implements connector.Connector.
func (c *Connector) Name() string { return "discord" }

// IsConnected implements connector.Connector.
func (c *Connector) IsConnected() bool { return c.connected.Load() }

// Connect opens a Discord gateway session and waits for the Ready event
// (or ctx's deadline, whichever comes first).
func (c *Connector) Connect(ctx context.Context) error {
	session, err := discordgo.New("Bot " + c.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: building session: %w", err)
	}

	ready := make(chan struct{})
	removeHandler := session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		select {
		case <-ready:
		default:
			close(ready)
		}
	})
	defer removeHandler()

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening session: %w", err)
	}

	select {
	case <-ready:
		c.session = session
		c.connected.Store(true)
		return nil
	case <-ctx.Done():
		_ = session.Close()
		return fmt.Errorf("discord: waiting for ready: %w", ctx.Err())
	}
}

// Disconnect closes the Discord gateway session.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	c.connected.Store(false)
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("discord: closing session: %w", err)
	}
	return nil
}

// Session returns the underlying discordgo.Session, nil until Connect
// succeeds. Plugins that need Discord-specific calls beyond the connector
// contract use this escape hatch, the same way the contract's doc comment
// in C15 anticipates "any additional methods their consumers require".
func (c *Connector) Session() *discordgo.Session { return c.session }
