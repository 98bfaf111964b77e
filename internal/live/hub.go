package live

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/jobtracker/internal/models"
)

// DefaultBufferSize is the per-subscriber frame buffer.
const DefaultBufferSize = 64

// Subscription receives encoded events from a Hub.
type Subscription struct {
	id     string
	ch     chan []byte
	closed atomic.Bool
}

// ID returns the subscriber identifier.
func (s *Subscription) ID() string { return s.id }

// C returns the frame channel. It is closed when the subscription is removed.
func (s *Subscription) C() <-chan []byte { return s.ch }

// Hub fans encoded events out to in-process subscribers. A subscriber
// whose buffer is full misses the event; the hub never blocks on it.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	bufferSize  int
	logger      *slog.Logger

	published atomic.Int64
	dropped   atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-subscriber buffer size.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) { h.bufferSize = size }
}

func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		subscribers: make(map[string]*Subscription),
		bufferSize:  DefaultBufferSize,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{id: uuid.NewString(), ch: make(chan []byte, h.bufferSize)}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	h.logger.Debug("live subscriber joined", slog.String("subscriber", sub.id))
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	delete(h.subscribers, sub.id)
	h.mu.Unlock()

	if sub.closed.CompareAndSwap(false, true) {
		close(sub.ch)
		h.logger.Debug("live subscriber left", slog.String("subscriber", sub.id))
	}
}

// Broadcast delivers frame to every subscriber without blocking and
// returns how many received it.
func (h *Hub) Broadcast(frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subscribers {
		if sub.closed.Load() {
			continue
		}
		select {
		case sub.ch <- frame:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	h.published.Add(int64(delivered))
	return delivered
}

// Publish implements Publisher for single-process deployments and tests.
func (h *Hub) Publish(_ context.Context, job models.Job) {
	frame, err := NewEvent(job).Encode()
	if err != nil {
		h.logger.Error("encode job update", slog.String("custom_id", job.CustomID), slog.String("error", err.Error()))
		return
	}
	h.Broadcast(frame)
}

// HubStats contains hub counters.
type HubStats struct {
	Subscribers    int   `json:"subscribers"`
	TotalPublished int64 `json:"total_published"`
	TotalDropped   int64 `json:"total_dropped"`
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	n := len(h.subscribers)
	h.mu.RUnlock()
	return HubStats{
		Subscribers:    n,
		TotalPublished: h.published.Load(),
		TotalDropped:   h.dropped.Load(),
	}
}
