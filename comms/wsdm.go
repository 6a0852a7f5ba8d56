package comms

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Handshake is the one time identification frame sent to the WSDM server on
// every new connection. Identifier and Address must match the identifier
// and address in the user device config served to Intiface.
type Handshake struct {
	Identifier string `json:"identifier"`
	Address    string `json:"address"`
	Version    int    `json:"version"`
}

// WSDMClient maintains the connection to the Intiface device websocket
// server, impersonating a Lovense toy. Binary frames are translated and the
// resulting intensities pushed onto the queue; the loop reconnects forever.
type WSDMClient struct {
	URL       string
	Handshake Handshake
	Queue     *IntensityQueue

	// Backoff overrides RECONNECT_DELAY when set. Used in tests.
	Backoff time.Duration

	linkStats
}

// wsdmSession is the state for a single connection attempt. The response id
// counter is reserved for Ok/Error replies; none are currently sent as the
// plain text protocol has no ack frames.
type wsdmSession struct {
	conn   *websocket.Conn
	nextID int
}

// sendHandshake identifies the shim to the WSDM server. No reply is
// awaited; a rejection only shows up as the next read error.
func (s *wsdmSession) sendHandshake(h Handshake) error {
	msg, err := json.Marshal(h)
	if err != nil {
		return err
	}
	log.Printf("wsdm: sending handshake: %s", msg)
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// Run drives the connect → handshake → listen loop until ctx is canceled.
// Connection failures only ever delay the next attempt.
func (c *WSDMClient) Run(ctx context.Context) {
	for {
		c.setState(LINK_CONNECTING)
		log.Printf("wsdm: connecting to %s", c.URL)

		if err := c.connect(ctx); err != nil {
			c.addError()
			log.Printf("wsdm: %v", err)
		}
		if ctx.Err() != nil {
			return
		}

		c.setState(LINK_BACKOFF)
		log.Printf("wsdm: disconnected, retrying in %s", c.backoff())
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff()):
		}
	}
}

func (c *WSDMClient) backoff() time.Duration {
	if c.Backoff > 0 {
		return c.Backoff
	}
	return RECONNECT_DELAY
}

// connect performs a single connection attempt and blocks until the server
// closes the socket, the connection errors or ctx ends.
func (c *WSDMClient) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.addConnect()
	c.setState(LINK_CONNECTED)
	log.Print("wsdm: connected")

	sess := &wsdmSession{conn: conn, nextID: 1}
	if err = sess.sendHandshake(c.Handshake); err != nil {
		return err
	}

	// unblock the read below on cancellation
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		mt, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		switch mt {
		case websocket.BinaryMessage:
			c.addFrame()
			c.handleFrame(payload)

		case websocket.TextMessage:
			// the WSDM server only ever sends device commands as binary
			log.Printf("wsdm: unexpected text frame: %s", payload)
		}
	}
}

func (c *WSDMClient) handleFrame(payload []byte) {
	cmd, err := ParseCommand(payload)
	switch {
	case err != nil:
		c.addError()
		log.Printf("wsdm: %v: %q", err, payload)

	case cmd.Ignored:
		log.Printf("wsdm: ignoring command %q", payload)

	default:
		log.Printf("wsdm: parsed %q -> pump speed %.2f", payload, cmd.Intensity)
		c.Queue.Push(cmd.Intensity)
	}
}
