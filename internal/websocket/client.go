// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/skywave/internal/metrics"
	"github.com/tomtom215/skywave/internal/pipeline"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 256
)

// clientIDCounter orders clients for deterministic broadcast.
var clientIDCounter atomic.Uint64

// settings are stream changes requested before the stream exists.
type settings struct {
	source *string
	mode   *pipeline.Mode
	offset *float64
	hwFreq *float64
	gain   *float64
}

func (s *settings) empty() bool {
	return s.source == nil && s.mode == nil && s.offset == nil && s.hwFreq == nil && s.gain == nil
}

// merge overlays newer onto s.
func (s *settings) merge(newer settings) {
	if newer.source != nil {
		s.source = newer.source
	}
	if newer.mode != nil {
		s.mode = newer.mode
	}
	if newer.offset != nil {
		s.offset = newer.offset
	}
	if newer.hwFreq != nil {
		s.hwFreq = newer.hwFreq
	}
	if newer.gain != nil {
		s.gain = newer.gain
	}
}

// Client is one control connection. It owns a single stream key.
type Client struct {
	id   uint64
	key  string
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	messages *rate.Limiter
	logins   *rate.Limiter

	mu         sync.Mutex
	privileged bool
	username   string
	pending    settings
}

// NewClient creates a client for conn that controls the stream named key.
func NewClient(hub *Hub, conn *websocket.Conn, key string) *Client {
	perSecond := hub.cfg.MessagesPerSecond
	if perSecond < 1 {
		perSecond = 1
	}
	perMinute := hub.cfg.LoginsPerMinute
	if perMinute < 1 {
		perMinute = 1
	}
	return &Client{
		id:       clientIDCounter.Add(1),
		key:      key,
		hub:      hub,
		conn:     conn,
		send:     make(chan Message, sendBuffer),
		messages: rate.NewLimiter(rate.Limit(perSecond), perSecond*2),
		logins:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Key returns the stream key assigned to this client.
func (c *Client) Key() string {
	return c.key
}

// Privileged reports whether the client has logged in.
func (c *Client) Privileged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.privileged
}

func (c *Client) setPrivileged(username string, ok bool) {
	c.mu.Lock()
	c.privileged = ok
	c.username = username
	c.mu.Unlock()
}

func (c *Client) deferSettings(s settings) {
	c.mu.Lock()
	c.pending.merge(s)
	c.mu.Unlock()
}

func (c *Client) takePending() settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.pending
	c.pending = settings{}
	return s
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("stream_key", c.key).Msg("unexpected websocket close error")
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.ControlMessages.WithLabelValues("invalid").Inc()
			c.hub.sendError(c, CodeInvalidRequest, "message is not valid JSON")
			continue
		}
		c.hub.handle(c, msg)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				c.hub.log.Error().Err(err).Str("type", message.Type).Msg("failed to encode message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
