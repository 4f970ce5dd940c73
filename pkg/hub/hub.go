package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-smartbin/internal/log"
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithReplay makes the hub remember the last broadcast and send it to
// every newly registered client. Used for state streams where a late
// joiner needs the current value.
func WithReplay() Option {
	return func(h *Hub) { h.replay = true }
}

// WithBuffer sets the broadcast and per-client queue sizes.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger
	replay bool
	buffer int

	// Registered clients, owned by the Run goroutine
	clients map[*Client]bool

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Last broadcast, owned by the Run goroutine
	last *Message

	count   atomic.Int64
	dropped atomic.Uint64
	running atomic.Bool

	stopOnce sync.Once
}

// New creates a new Hub
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:   name,
		buffer: 256,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = log.Component(h.logger, "hub").With("hub", name)

	h.clients = make(map[*Client]bool)
	h.broadcast = make(chan Message, h.buffer)
	h.register = make(chan *Client)
	h.unregister = make(chan *Client)
	h.done = make(chan struct{})
	return h
}

// Name returns the hub name.
func (h *Hub) Name() string {
	return h.name
}

// Run starts the hub's main loop and blocks until ctx is done.
// Every client's send channel is closed on return.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		for client := range h.clients {
			h.remove(client)
		}
		h.running.Store(false)
		h.stopOnce.Do(func() { close(h.done) })
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			if h.last != nil {
				client.send <- *h.last
			}
			h.logger.Info("client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				h.remove(client)
			}
			h.logger.Info("client disconnected", "clients", len(h.clients))

		case message := <-h.broadcast:
			if h.replay {
				msg := message
				h.last = &msg
			}
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full, they're too slow
					h.remove(client)
					h.dropped.Add(1)
					h.logger.Warn("dropped slow client")
				}
			}
		}
	}
}

// remove closes a client's queue. Run goroutine only.
func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Debug("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v interface{}) error {
	msg, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// BroadcastBinary broadcasts binary data (e.g., camera frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Dropped returns how many messages or clients were dropped.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
