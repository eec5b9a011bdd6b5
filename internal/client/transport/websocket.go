package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/signaling"
	"golang.org/x/net/websocket"
)

// Conn is a client's signaling connection. Send may be called from any goroutine; frames are read
// by a single loop in Run, so handlers observe them in arrival order.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  sync.Once
}

// Dial opens the signaling websocket at /ws
func Dial(ctx context.Context, c Credentials) (*Conn, error) {
	cfg, err := newWsConfig(c, "/ws")
	if err != nil {
		return nil, err
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error dialing ws: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// newWsConfig creates a new websocket.Config for the vibbin server for a specific endpoint, with basic auth.
func newWsConfig(c Credentials, endpoint string) (*websocket.Config, error) {
	loc := strings.Replace(strings.TrimSuffix(c.BaseURL, "/"), "http", "ws", 1) + endpoint
	logrus.WithField("url", loc).Debug("dialing signaling websocket")

	cfg, err := websocket.NewConfig(loc, "app://vibbin") // no real origin b/c we're not a browser
	if err != nil {
		return nil, err
	}

	// set basic auth for the http request that initates the ws connection
	auth := c.Username + ":" + c.Password
	auth = base64.StdEncoding.EncodeToString([]byte(auth))
	cfg.Header.Set("Authorization", "Basic "+auth)

	return cfg, nil
}

// Send writes one client frame
func (c *Conn) Send(msg signaling.ClientMessage) error {
	frame, err := signaling.EncodeClient(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := websocket.Message.Send(c.ws, string(frame)); err != nil {
		return fmt.Errorf("error sending %s: %w", msg.ClientEvent(), err)
	}
	return nil
}

// Run reads frames until the connection closes or ctx is cancelled, calling handle for each.
// Undecodable frames are logged and skipped. Returns nil on a clean close or cancellation.
func (c *Conn) Run(ctx context.Context, handle func(signaling.ServerMessage)) error {
	var watch sync.WaitGroup
	done := make(chan struct{})
	defer func() {
		close(done)
		watch.Wait()
	}()

	// closing the socket is the only way to interrupt a blocked read
	watch.Go(func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	})

	for {
		var frame []byte
		if err := websocket.Message.Receive(c.ws, &frame); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("error reading from ws: %w", err)
		}
		msg, err := signaling.DecodeServer(frame)
		if err != nil {
			logrus.Warnf("dropping frame: %v", err)
			continue
		}
		handle(msg)
	}
}

// Close closes the websocket; safe to call more than once
func (c *Conn) Close() error {
	var err error
	c.closed.Do(func() {
		err = c.ws.Close()
	})
	return err
}
