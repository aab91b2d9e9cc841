// Package live fans out per-user expense snapshots to subscribers such as
// open WebSocket connections.
package live

import (
	"sync"

	"spendwise/internal/core"
)

// Snapshot is the full ordered expense list of one user at a point in time.
type Snapshot struct {
	UserID   string         `json:"user_id"`
	Seq      uint64         `json:"seq"`
	Stats    core.Stats     `json:"stats"`
	Expenses []core.Expense `json:"expenses"`
}

// Gauge is satisfied by a prometheus gauge.
type Gauge interface {
	Inc()
	Dec()
}

type subscriber struct {
	mu      sync.Mutex
	fn      func(Snapshot)
	lastSeq uint64
}

// deliver calls fn unless a newer snapshot was already delivered.
func (s *subscriber) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Seq <= s.lastSeq {
		return
	}
	s.lastSeq = snap.Seq
	s.fn(snap)
}

// Hub is an in-process registry of snapshot subscribers keyed by user.
type Hub struct {
	mu    sync.RWMutex
	subs  map[string]map[*subscriber]struct{}
	seq   map[string]uint64
	gauge Gauge
}

func NewHub(gauge Gauge) *Hub {
	return &Hub{
		subs:  make(map[string]map[*subscriber]struct{}),
		seq:   make(map[string]uint64),
		gauge: gauge,
	}
}

// Subscribe registers fn for userID. The returned function removes the
// subscription and may be called more than once.
func (h *Hub) Subscribe(userID string, fn func(Snapshot)) (unsubscribe func()) {
	s := &subscriber{fn: fn}

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	if h.gauge != nil {
		h.gauge.Inc()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], s)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			if h.gauge != nil {
				h.gauge.Dec()
			}
		})
	}
}

// NextSeq reserves the next sequence number for userID.
func (h *Hub) NextSeq(userID string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq[userID]++
	return h.seq[userID]
}

// Publish stamps snap with a fresh sequence number when it has none and
// delivers it to every subscriber of snap.UserID.
func (h *Hub) Publish(snap Snapshot) {
	if snap.Seq == 0 {
		snap.Seq = h.NextSeq(snap.UserID)
	}

	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs[snap.UserID]))
	for s := range h.subs[snap.UserID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.deliver(snap)
	}
}

// Subscribers returns how many subscriptions exist for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
