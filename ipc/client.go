package ipc

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Client is the controller side of the pipe protocol: one command per
// message out, one NUL-terminated response per message in, single
// outstanding request.
type Client struct {
	conn    net.Conn
	buf     []byte
	Timeout time.Duration // per-roundtrip read deadline
}

// Dial connects to the bridge endpoint.
func Dial(pipeName string) (*Client, error) {
	conn, err := dial(pipeName, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", pipeName, err)
	}
	return &Client{conn: conn, buf: make([]byte, BufferSize), Timeout: 2 * time.Second}, nil
}

// Roundtrip sends one command and blocks for its response. A read
// deadline bounds the wait: the server writes nothing when the host
// missed the response window, and retrying is the controller's call.
func (c *Client) Roundtrip(cmd string) (string, error) {
	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("sending command: %w", err)
	}
	if c.Timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.Timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}
	n, err := c.conn.Read(c.buf)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return strings.TrimRight(string(c.buf[:n]), "\x00"), nil
}

// Close drops the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
