package rcon

import (
	"context"
	"fmt"
	"sync"
	"time"

	gorcon "github.com/gorcon/rcon"

	"factorioagent/internal/debug"
)

// Client is the remote command channel to the Factorio server. Factorio
// speaks the Source RCON protocol; the wire format is delegated to
// github.com/gorcon/rcon and this wrapper only manages the connection
// lifecycle: lazy dial on first use, reconnect after a failed exchange.
type Client struct {
	addr     string
	password string
	timeout  time.Duration
	debug    *debug.Logger

	mu   sync.Mutex
	conn *gorcon.Conn
}

func NewClient(host string, port int, password string, debugLogger *debug.Logger) *Client {
	return &Client{
		addr:     fmt.Sprintf("%s:%d", host, port),
		password: password,
		timeout:  10 * time.Second,
		debug:    debugLogger,
	}
}

// Execute sends one command and returns the server's reply. The reply text
// is returned as-is; interpreting game-side failure markers is the caller's
// concern. A returned error always means the transport failed.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := gorcon.Dial(c.addr, c.password,
			gorcon.SetDialTimeout(c.timeout),
			gorcon.SetDeadline(c.timeout),
		)
		if err != nil {
			return "", fmt.Errorf("rcon dial %s: %w", c.addr, err)
		}
		c.conn = conn
		if c.debug != nil {
			c.debug.Printf("rcon connected to %s", c.addr)
		}
	}

	response, err := c.conn.Execute(command)
	if err != nil {
		// Drop the connection so the next call redials.
		c.conn.Close()
		c.conn = nil
		return "", fmt.Errorf("rcon execute: %w", err)
	}
	return response, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
