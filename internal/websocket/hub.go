// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package websocket

import (
	"context"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/skywave/internal/auth"
	"github.com/tomtom215/skywave/internal/logging"
	"github.com/tomtom215/skywave/internal/metrics"
	"github.com/tomtom215/skywave/internal/session"
	"github.com/tomtom215/skywave/internal/source"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Sessions is the part of the session manager the control channel drives.
type Sessions interface {
	Get(key string) (session.Info, error)
	Reconfigure(key string, rc session.Reconfig) error
	SetSource(key, label string) error
	Tune(key string, hwFreq float64) error
	SetGain(key string, db float64) error
	Subscribe(fn func(session.Event)) func()
}

// Catalog lists the tuners a client may pick from.
type Catalog interface {
	List() []source.Info
	Default() (*source.Tuner, error)
}

// Config holds control-channel settings.
type Config struct {
	KeyLength         int
	Extension         string
	AllowedOrigins    []string
	MessagesPerSecond int
	LoginsPerMinute   int
}

// Hub maintains the set of active control clients and broadcasts messages to
// them. Each client is indexed by the stream key it controls so session
// events can be routed back to it.
type Hub struct {
	cfg      Config
	sessions Sessions
	sources  Catalog
	auth     *auth.Authenticator
	log      zerolog.Logger

	clients   map[*Client]bool
	byKey     map[string]*Client
	broadcast chan Message
	mu        sync.RWMutex

	unsubscribe func()
}

// NewHub creates a new Hub subscribed to session events. authn may be nil,
// in which case every login is refused.
func NewHub(cfg Config, sessions Sessions, sources Catalog, authn *auth.Authenticator) *Hub {
	if cfg.KeyLength < 1 {
		cfg.KeyLength = 8
	}
	h := &Hub{
		cfg:       cfg,
		sessions:  sessions,
		sources:   sources,
		auth:      authn,
		log:       logging.WithComponent("websocket-hub"),
		clients:   make(map[*Client]bool),
		byKey:     make(map[string]*Client),
		broadcast: make(chan Message, sendBuffer),
	}
	h.unsubscribe = sessions.Subscribe(h.onSessionEvent)
	return h
}

// Close stops routing session events to the hub.
func (h *Hub) Close() {
	h.unsubscribe()
}

// RunWithContext fans out broadcasts until ctx is canceled. On return every
// connected client has been closed, so a supervisor may restart the hub
// without leaving orphaned connections.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Shutdown takes priority over pending broadcasts.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.byKey[c.key] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ControlClients.Set(float64(n))
	h.log.Info().Str("stream_key", c.key).Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		h.removeLocked(c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ControlClients.Set(float64(n))
	h.log.Info().Str("stream_key", c.key).Int("total_clients", n).Msg("websocket client disconnected")
}

// removeLocked must be called with mu held for writing.
func (h *Hub) removeLocked(c *Client) {
	delete(h.clients, c)
	if h.byKey[c.key] == c {
		delete(h.byKey, c.key)
	}
	close(c.send)
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	h.log.Info().
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedLocked returns clients in ID order. mu must be held.
func (h *Hub) sortedLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients sends a message to all clients in ID order. Clients
// whose buffer is full are disconnected.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedLocked() {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		h.log.Warn().Str("stream_key", client.key).Msg("control client too slow, disconnecting")
		h.removeLocked(client)
	}
	if len(toRemove) > 0 {
		metrics.ControlClients.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedLocked() {
		h.removeLocked(client)
	}
	metrics.ControlClients.Set(0)
}

// sendTo queues msg for one client. It is a no-op once the client is gone.
func (h *Hub) sendTo(c *Client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.log.Warn().Str("stream_key", c.key).Str("type", msg.Type).Msg("client send buffer full, dropping message")
	}
}

func (h *Hub) clientFor(key string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byKey[key]
}

// BroadcastJSON sends a JSON message to all connected clients
func (h *Hub) BroadcastJSON(messageType string, data any) {
	message := Message{
		Type: messageType,
		Data: data,
	}

	select {
	case h.broadcast <- message:
	default:
		h.log.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// newStreamKey returns length lowercase hex characters followed by ext.
func newStreamKey(length int, ext string) string {
	var b strings.Builder
	for b.Len() < length {
		u := uuid.New()
		b.WriteString(hex.EncodeToString(u[:]))
	}
	return b.String()[:length] + ext
}
