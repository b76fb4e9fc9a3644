// Package hub fans node events out to in-process handlers, subscribers and
// server-sent-event clients.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"dronenet/internal/channel"
	"dronenet/internal/domain"
)

// Handler is called for every event, in Pump's goroutine
type Handler func(domain.Event)

// Client represents a connected subscriber
type Client struct {
	id     string
	events chan domain.Event
}

// Hub manages subscribers
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	handlers  []Handler
	broadcast chan domain.Event
	stopped   bool
	nextID    atomic.Uint64
	logger    *logrus.Entry

	// KeepAlive is the SSE comment interval
	KeepAlive time.Duration
}

// New creates a new Hub
func New(logger *logrus.Entry) *Hub {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan domain.Event, 256),
		logger:    logger.WithField("component", "hub"),
		KeepAlive: 30 * time.Second,
	}
}

// Run starts the hub's event loop. It returns when ctx is done, closing
// every subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case ev := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.events <- ev:
				default:
					// Client is slow, skip this event
					h.logger.WithField("client", client.id).Debug("Subscriber is slow, skipping event")
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			h.stopped = true
			for client := range h.clients {
				delete(h.clients, client)
				close(client.events)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Handle registers a handler that sees every event. Handlers must be added
// before Pump starts.
func (h *Hub) Handle(fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

// Broadcast sends an event to all subscribers
func (h *Hub) Broadcast(ev domain.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("Broadcast channel full, dropping event")
	}
}

// Pump drains rx into the handlers and subscribers until the channel is
// closed or ctx is done. Events already queued when ctx ends are still
// delivered.
func (h *Hub) Pump(ctx context.Context, rx channel.Receiver[domain.Event]) error {
	for {
		ev, err := rx.Recv(ctx)
		if err != nil {
			if errors.Is(err, channel.ErrClosed) {
				return nil
			}
			for {
				ev, ok := rx.TryRecv()
				if !ok {
					break
				}
				h.dispatch(ev)
			}
			return err
		}
		h.dispatch(ev)
	}
}

func (h *Hub) dispatch(ev domain.Event) {
	h.mu.RLock()
	handlers := h.handlers
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
	h.Broadcast(ev)
}

// Subscribe registers a subscriber. The returned function unsubscribes; the
// channel is closed once it did or the hub stopped.
func (h *Hub) Subscribe() (<-chan domain.Event, func()) {
	client := &Client{
		id:     strconv.FormatUint(h.nextID.Add(1), 10),
		events: make(chan domain.Event, 64),
	}

	h.mu.Lock()
	if h.stopped {
		close(client.events)
		h.mu.Unlock()
		return client.events, func() {}
	}
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.WithFields(logrus.Fields{"client": client.id, "total": total}).Debug("Subscriber connected")

	return client.events, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.events)
			h.logger.WithFields(logrus.Fields{"client": client.id, "total": len(h.clients)}).Debug("Subscriber disconnected")
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP streams events as server-sent events named after their kind
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Check if client supports SSE
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	// Send initial connection message
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.WithError(err).Warn("Failed to marshal event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			// Send keep-alive comment
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
