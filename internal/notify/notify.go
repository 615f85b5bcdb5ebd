// Package notify delivers user-facing notifications to subscribers.
//
// Every subscriber owns an unbounded mailbox, so a slow reader never causes
// a notification to be dropped and publishers never block on readers.
package notify

import (
	"sync"
	"time"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/metrics"
)

// Level classifies a notification.
type Level string

// Notification levels.
const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one message for the user.
type Notification struct {
	ID      uint64     `json:"id"`
	Level   Level      `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message,omitempty"`
	Kind    chain.Kind `json:"kind,omitempty"`
	TxHash  string     `json:"tx_hash,omitempty"`
	At      time.Time  `json:"at"`
}

// Publisher publishes notifications.
type Publisher interface {
	Publish(n Notification) Notification
}

// Hub fans notifications out to subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	seq    uint64
	closed bool
	now    func() time.Time
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[uint64]*Subscription),
		now:  time.Now,
	}
}

// Publish assigns the notification an ID and timestamp and queues it for
// every current subscriber. Publishing on a closed Hub is a no-op.
func (h *Hub) Publish(n Notification) Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return n
	}
	h.seq++
	n.ID = h.seq
	if n.At.IsZero() {
		n.At = h.now()
	}
	for _, s := range h.subs {
		s.enqueue(n)
	}
	metrics.Global.RecordNotification(string(n.Level))
	return n
}

// Subscribe registers a new subscriber. It receives every notification
// published after Subscribe returns.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscription{
		hub:    h,
		id:     h.nextID,
		out:    make(chan Notification),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if h.closed {
		s.stop()
	} else {
		h.subs[s.id] = s
	}
	go s.run()
	return s
}

// Close closes every subscription and rejects further publishing.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = map[uint64]*Subscription{}
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Subscription is one reader of a Hub.
type Subscription struct {
	hub *Hub
	id  uint64

	mu    sync.Mutex
	queue []Notification

	out      chan Notification
	signal   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Notification {
	return s.out
}

// Close unsubscribes. Notifications not yet received are discarded.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
	s.stop()
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Subscription) enqueue(n Notification) {
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.queue[0] = Notification{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
