// Package notify keeps the transient user notifications produced by actions and pollers.
// History is bounded; the oldest entries are dropped once capacity is reached.
package notify

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/rentchain/rental-client/internal/interfaces"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	FlowID    string    `json:"flowId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Hub struct {
	mu      sync.Mutex
	history *deque.Deque[Notification]
	cap     int

	subs   map[int]chan Notification
	nextID int

	log interfaces.ILogger
}

func NewHub(capacity int, log interfaces.ILogger) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		history: deque.New[Notification](capacity, capacity),
		cap:     capacity,
		subs:    make(map[int]chan Notification),
		log:     log,
	}
}

// Publish records the notification and fans it out to subscribers; slow subscribers miss entries
func (h *Hub) Publish(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	h.mu.Lock()
	if h.history.Len() >= h.cap {
		h.history.PopFront()
	}
	h.history.PushBack(n)
	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.log.Warnf("notification subscriber %d is full, dropping %s", id, n.ID)
		}
	}
	h.mu.Unlock()

	h.log.Debugf("notification [%s] %s: %s", n.Level, n.Title, n.Message)
}

func (h *Hub) Info(title, message string) {
	h.Publish(Notification{Level: LevelInfo, Title: title, Message: message})
}

func (h *Hub) Warn(title, message string) {
	h.Publish(Notification{Level: LevelWarning, Title: title, Message: message})
}

// Recent returns up to limit notifications, newest first
func (h *Hub) Recent(limit int) []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.history.Len()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Notification, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.history.At(i))
	}
	return out
}

// Subscribe returns a channel receiving new notifications and a function to unsubscribe
func (h *Hub) Subscribe(buffer int) (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Notification, buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}
