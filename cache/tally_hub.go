package cache

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Subscriber receives JSON messages. *websocket.Conn satisfies it.
type Subscriber interface {
	WriteJSON(v interface{}) error
}

// TallyHub fans live tallies out to websocket subscribers per session.
type TallyHub struct {
	mu     sync.Mutex
	sendMu sync.Mutex // websocket writers are not safe for concurrent use
	subs   map[uint]map[Subscriber]struct{}
	logger *logrus.Entry
}

func NewTallyHub(logger *logrus.Entry) *TallyHub {
	return &TallyHub{
		subs:   make(map[uint]map[Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers s for sessionID and returns the matching cancel.
func (h *TallyHub) Subscribe(sessionID uint, s Subscriber) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[Subscriber]struct{})
	}
	h.subs[sessionID][s] = struct{}{}
	return func() { h.remove(sessionID, s) }
}

func (h *TallyHub) remove(sessionID uint, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[sessionID], s)
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
}

// Subscribers returns the number of live subscribers for a session.
func (h *TallyHub) Subscribers(sessionID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Broadcast writes msg to every subscriber of sessionID. Subscribers that
// fail to receive are dropped.
func (h *TallyHub) Broadcast(sessionID uint, msg interface{}) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.mu.Lock()
	targets := make([]Subscriber, 0, len(h.subs[sessionID]))
	for s := range h.subs[sessionID] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		if err := s.WriteJSON(msg); err != nil {
			h.logger.WithError(err).WithField("session_id", sessionID).Debug("dropping tally subscriber")
			h.remove(sessionID, s)
		}
	}
}
