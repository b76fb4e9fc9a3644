// Package bridge republishes node events on a nanomsg PUB socket so external
// tools can follow a run without talking to the HTTP surface.
package bridge

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	"dronenet/internal/domain"

	// Register transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// Separator splits the topic from the JSON body in every message
const Separator = '|'

// Publisher streams events to any number of SUB sockets
type Publisher struct {
	mu     sync.Mutex
	sock   mangos.Socket
	closed bool
	logger *logrus.Entry
}

// NewPublisher binds a PUB socket to addr, e.g. tcp://127.0.0.1:9095 or
// inproc://events.
func NewPublisher(addr string, logger *logrus.Entry) (*Publisher, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to bind PUB socket: %w", err)
	}

	logger = logger.WithFields(logrus.Fields{"component": "bridge", "addr": addr})
	logger.Info("Event publisher bound")

	return &Publisher{sock: sock, logger: logger}, nil
}

// Encode renders an event as "<kind>|<json>"
func Encode(ev domain.Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	msg := make([]byte, 0, len(ev.Kind)+1+len(body))
	msg = append(msg, string(ev.Kind)...)
	msg = append(msg, Separator)
	return append(msg, body...), nil
}

// Publish sends one event. PUB sockets never block on slow subscribers.
func (p *Publisher) Publish(ev domain.Event) error {
	msg, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return mangos.ErrClosed
	}
	return p.sock.Send(msg)
}

// Handle is a hub handler that logs instead of returning publish errors
func (p *Publisher) Handle(ev domain.Event) {
	if err := p.Publish(ev); err != nil {
		p.logger.WithError(err).WithField("kind", ev.Kind).Warn("Failed to publish event")
	}
}

// Close releases the socket. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.sock.Close()
}
