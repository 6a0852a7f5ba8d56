package comms

import (
	"sync"
	"time"
)

// RECONNECT_DELAY is the fixed backoff between connection attempts on
// either link.
const RECONNECT_DELAY = 5 * time.Second

type LinkState string

const (
	LINK_CONNECTING LinkState = "connecting"
	LINK_CONNECTED  LinkState = "connected"
	LINK_BACKOFF    LinkState = "backoff"
)

// LinkStatus is a point in time snapshot of a link manager, exposed for the
// diagnostics API and the debug shell.
type LinkStatus struct {
	State    LinkState `json:"state"`
	Connects int       `json:"connects"`
	Frames   int       `json:"frames"`
	Errors   int       `json:"errors"`
}

// linkStats holds the mutable counters shared with the status readers. The
// link managers embed it; sockets and session state stay exclusively owned.
type linkStats struct {
	mu     sync.Mutex
	status LinkStatus
}

func (s *linkStats) setState(state LinkState) {
	s.mu.Lock()
	s.status.State = state
	s.mu.Unlock()
}

func (s *linkStats) addConnect() {
	s.mu.Lock()
	s.status.Connects++
	s.mu.Unlock()
}

func (s *linkStats) addFrame() {
	s.mu.Lock()
	s.status.Frames++
	s.mu.Unlock()
}

func (s *linkStats) addError() {
	s.mu.Lock()
	s.status.Errors++
	s.mu.Unlock()
}

func (s *linkStats) Status() LinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
