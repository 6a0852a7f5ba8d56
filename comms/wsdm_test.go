package comms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsTestServer accepts upgrades and hands each connection to the test.
func wsTestServer() (*httptest.Server, chan *websocket.Conn) {
	conns := make(chan *websocket.Conn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- c
	}))
	return srv, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func popTimeout(q *IntensityQueue, d time.Duration) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return q.Pop(ctx)
}

// refusingServer rejects every upgrade, timestamping each attempt.
func refusingServer() (*httptest.Server, chan time.Time) {
	attempts := make(chan time.Time, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts <- time.Now()
		http.Error(w, "no upgrade here", http.StatusBadRequest)
	}))
	return srv, attempts
}

func nextAttempt(t *testing.T, attempts chan time.Time) time.Time {
	t.Helper()
	select {
	case at := <-attempts:
		return at
	case <-time.After(2 * time.Second):
		t.Fatal("no connection attempt arrived")
		return time.Time{}
	}
}

func TestWSDMClientBackoffSpacing(t *testing.T) {
	srv, attempts := refusingServer()
	defer srv.Close()

	client := &WSDMClient{
		URL:     wsURL(srv),
		Queue:   NewIntensityQueue(),
		Backoff: 100 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	Convey("consecutive attempts wait out the full backoff", t, func() {
		last := nextAttempt(t, attempts)
		for i := 0; i < 3; i++ {
			next := nextAttempt(t, attempts)
			So(next.Sub(last), ShouldBeGreaterThanOrEqualTo, 100*time.Millisecond)
			last = next
		}
	})
}

func TestWSDMClient(t *testing.T) {
	srv, conns := wsTestServer()
	defer srv.Close()

	queue := NewIntensityQueue()
	client := &WSDMClient{
		URL: wsURL(srv),
		Handshake: Handshake{
			Identifier: "lovense",
			Address:    "6a797313-e431-4b9f-9fd0-3eef4c97df24",
			Version:    0,
		},
		Queue:   queue,
		Backoff: 10 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	conn := <-conns

	Convey("the handshake is the first frame on a new connection", t, func() {
		mt, payload, err := conn.ReadMessage()
		So(err, ShouldBeNil)
		So(mt, ShouldEqual, websocket.TextMessage)

		var hs Handshake
		So(json.Unmarshal(payload, &hs), ShouldBeNil)
		So(hs.Identifier, ShouldEqual, "lovense")
		So(hs.Address, ShouldEqual, "6a797313-e431-4b9f-9fd0-3eef4c97df24")
		So(hs.Version, ShouldEqual, 0)
	})

	Convey("binary command frames end up on the queue", t, func() {
		So(conn.WriteMessage(websocket.BinaryMessage, []byte("Vibrate:10;")), ShouldBeNil)

		v, err := popTimeout(queue, time.Second)
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 0.5)
	})

	Convey("unparseable, ignored and text frames queue nothing", t, func() {
		So(conn.WriteMessage(websocket.BinaryMessage, []byte("vibrate:21;")), ShouldBeNil)
		So(conn.WriteMessage(websocket.BinaryMessage, []byte("GetBattery;")), ShouldBeNil)
		So(conn.WriteMessage(websocket.TextMessage, []byte("hello")), ShouldBeNil)

		_, err := popTimeout(queue, 50*time.Millisecond)
		So(err, ShouldEqual, context.DeadlineExceeded)
	})

	Convey("a server close triggers a reconnect with a fresh handshake", t, func() {
		conn.Close()

		next := <-conns
		mt, payload, err := next.ReadMessage()
		So(err, ShouldBeNil)
		So(mt, ShouldEqual, websocket.TextMessage)
		So(string(payload), ShouldContainSubstring, `"identifier":"lovense"`)

		Convey("and commands keep flowing on the new connection", func() {
			So(next.WriteMessage(websocket.BinaryMessage, []byte("stop;")), ShouldBeNil)

			v, err := popTimeout(queue, time.Second)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0.0)
			So(client.Status().Connects, ShouldBeGreaterThanOrEqualTo, 2)
		})
	})
}
