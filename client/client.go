// Package client speaks the relay protocol over TLS. It is used by the probe
// binary and by end-to-end tests.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"secure-chat/codec"
	"secure-chat/domain/chat"
	"secure-chat/errors"
	"sync"
	"time"
)

type Client struct {
	conn *tls.Conn

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// Dial opens a TLS connection to addr and completes the handshake.
func Dial(ctx context.Context, addr string, config *tls.Config) (*Client, error) {
	dialer := tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}, Config: config}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn.(*tls.Conn)}, nil
}

func (c *Client) Send(msg chat.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return codec.WriteFrame(c.conn, msg)
}

// Receive blocks for the next message from the server.
func (c *Client) Receive() (chat.Message, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	frame, err := codec.ReadFrame(c.conn)
	if err != nil {
		return chat.Message{}, err
	}
	return codec.Decode(frame)
}

// ReceiveWithin is Receive bounded by timeout.
func (c *Client) ReceiveWithin(timeout time.Duration) (chat.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return chat.Message{}, err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	return c.Receive()
}

// Login sends a LOGIN_REQUEST and waits for the answer. It returns the
// session token, or errors.ErrLoginRejected wrapping the server's reason.
func (c *Client) Login(username, credential string, timeout time.Duration) (string, error) {
	if err := c.Send(chat.NewLoginRequest(username, credential)); err != nil {
		return "", err
	}
	reply, err := c.ReceiveWithin(timeout)
	if err != nil {
		return "", err
	}
	switch reply.Kind {
	case chat.LoginResponse:
		return reply.Content.OrEmpty(), nil
	case chat.Error:
		return "", fmt.Errorf("%w: %s", errors.ErrLoginRejected, reply.Content.OrEmpty())
	default:
		return "", fmt.Errorf("%w: unexpected %s", errors.ErrLoginRejected, reply.Kind)
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
