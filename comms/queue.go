package comms

import (
	"context"
	"errors"
	"sync/atomic"
)

var ERR_QUEUE_CLOSED = errors.New("intensity queue is closed")

// IntensityQueue is the FIFO coupling between the WSDM link and the pump
// link. Pushes never block on the consumer and never drop; values queued
// while the pump link is down are delivered once it reconnects.
type IntensityQueue struct {
	in    chan float64
	out   chan float64
	depth int64
}

func NewIntensityQueue() *IntensityQueue {
	q := &IntensityQueue{
		in:  make(chan float64),
		out: make(chan float64),
	}
	go q.run()
	return q
}

// run shuttles values from in to out through an unbounded buffer, keeping
// arrival order.
func (q *IntensityQueue) run() {
	var buf []float64
	for {
		if len(buf) == 0 {
			v, ok := <-q.in
			if !ok {
				close(q.out)
				return
			}
			buf = append(buf, v)
		}

		select {
		case v, ok := <-q.in:
			if !ok {
				// deliver what is left before closing
				for _, v := range buf {
					q.out <- v
				}
				close(q.out)
				return
			}
			buf = append(buf, v)

		case q.out <- buf[0]:
			buf = buf[1:]
		}
	}
}

// Push enqueues a normalized intensity.
func (q *IntensityQueue) Push(v float64) {
	q.in <- v
	atomic.AddInt64(&q.depth, 1)
}

// Pop blocks until a value is available or ctx is canceled.
func (q *IntensityQueue) Pop(ctx context.Context) (float64, error) {
	select {
	case v, ok := <-q.out:
		if !ok {
			return 0, ERR_QUEUE_CLOSED
		}
		atomic.AddInt64(&q.depth, -1)
		return v, nil

	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Depth reports the number of values awaiting delivery.
func (q *IntensityQueue) Depth() int {
	return int(atomic.LoadInt64(&q.depth))
}

// Close stops the queue after delivering any buffered values. Push must not
// be called after Close.
func (q *IntensityQueue) Close() {
	close(q.in)
}
