package comms

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// PUMP_CONNECT_TIMEOUT bounds the websocket handshake to the device so a
// dead address cannot hang the loop.
const PUMP_CONNECT_TIMEOUT = 10 * time.Second

// pumpState is the JSON command frame the lBIS device accepts.
type pumpState struct {
	Pump float64 `json:"pump"`
}

// PumpClient drains the intensity queue and forwards each value to the lBIS
// pump control endpoint as a text frame. Like the WSDM side it reconnects
// forever; a value in flight during a send failure is lost, the rest of the
// queue survives.
type PumpClient struct {
	URL   string
	Queue *IntensityQueue

	// Backoff overrides RECONNECT_DELAY when set. Used in tests.
	Backoff time.Duration

	linkStats
}

// Run drives the connect → send loop until ctx is canceled.
func (c *PumpClient) Run(ctx context.Context) {
	for {
		c.setState(LINK_CONNECTING)
		log.Printf("pump: connecting to %s", c.URL)

		err := c.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == ERR_QUEUE_CLOSED {
			// the drain is done, reconnecting would deliver nothing
			log.Print("pump: queue closed, stopping")
			return
		}
		if err != nil {
			c.addError()
			log.Printf("pump: %v", err)
		}

		c.setState(LINK_BACKOFF)
		log.Printf("pump: disconnected, retrying in %s", c.backoff())
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff()):
		}
	}
}

func (c *PumpClient) backoff() time.Duration {
	if c.Backoff > 0 {
		return c.Backoff
	}
	return RECONNECT_DELAY
}

// connect performs a single connection attempt and forwards queued values
// until a send fails or ctx ends. The queue receive is the only blocking
// point on an established connection.
func (c *PumpClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: PUMP_CONNECT_TIMEOUT}
	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.addConnect()
	c.setState(LINK_CONNECTED)
	log.Print("pump: connected")

	for {
		v, err := c.Queue.Pop(ctx)
		if err != nil {
			return err
		}

		msg, err := json.Marshal(pumpState{Pump: v})
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// the popped value is lost; nothing re-queues it
			return err
		}

		c.addFrame()
		log.Printf("pump: set speed %.2f", v)
	}
}
