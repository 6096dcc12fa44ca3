package orvibo

import (
	"sync/atomic"
	"time"
)

// Stats holds operational counters for protocol traffic. A single Stats
// value may be shared between many short-lived Devices so that per-request
// sockets still aggregate into one set of counters.
//
// Thread Safety: all methods are safe for concurrent use.
type Stats struct {
	framesTx      atomic.Uint64
	framesRx      atomic.Uint64
	framesDropped atomic.Uint64 // malformed or filtered-out frames
	timeouts      atomic.Uint64 // receive windows that elapsed empty
	errorsTotal   atomic.Uint64
	lastActivity  atomic.Int64 // Unix timestamp
}

// NewStats returns a zeroed counter set.
func NewStats() *Stats {
	return &Stats{}
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	FramesTx      uint64
	FramesRx      uint64
	FramesDropped uint64
	Timeouts      uint64
	ErrorsTotal   uint64
	LastActivity  time.Time
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		FramesTx:      s.framesTx.Load(),
		FramesRx:      s.framesRx.Load(),
		FramesDropped: s.framesDropped.Load(),
		Timeouts:      s.timeouts.Load(),
		ErrorsTotal:   s.errorsTotal.Load(),
	}
	if ts := s.lastActivity.Load(); ts > 0 {
		snap.LastActivity = time.Unix(ts, 0)
	}
	return snap
}

func (s *Stats) addTx() {
	if s == nil {
		return
	}
	s.framesTx.Add(1)
	s.lastActivity.Store(time.Now().Unix())
}

func (s *Stats) addRx() {
	if s == nil {
		return
	}
	s.framesRx.Add(1)
	s.lastActivity.Store(time.Now().Unix())
}

func (s *Stats) addDropped() {
	if s == nil {
		return
	}
	s.framesDropped.Add(1)
}

func (s *Stats) addTimeout() {
	if s == nil {
		return
	}
	s.timeouts.Add(1)
}

func (s *Stats) addError() {
	if s == nil {
		return
	}
	s.errorsTotal.Add(1)
}
