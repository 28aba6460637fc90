// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package websocket

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/skywave/internal/auth"
	"github.com/tomtom215/skywave/internal/metrics"
	"github.com/tomtom215/skywave/internal/pipeline"
	"github.com/tomtom215/skywave/internal/session"
	"github.com/tomtom215/skywave/internal/source"
	"github.com/tomtom215/skywave/internal/validation"
)

// ServeHTTP upgrades the request and attaches a new control client with a
// freshly generated stream key.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := NewClient(h, conn, newStreamKey(h.cfg.KeyLength, h.cfg.Extension))
	// The buffer is empty, so hello is always the first frame.
	c.send <- Message{Type: TypeHello, Data: h.hello(c)}
	h.register(c)
	c.Start()
}

// checkOrigin rejects requests without an Origin header. Browsers always
// send one on websocket upgrades.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		h.log.Warn().Msg("websocket connection rejected: missing Origin header")
		return false
	}
	if slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin) {
		return true
	}
	h.log.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

func (h *Hub) hello(c *Client) Hello {
	demods := make([]string, 0, 7)
	demods = append(demods, pipeline.ModeNone.String())
	for _, m := range pipeline.Demodulators() {
		demods = append(demods, m.String())
	}

	current := ""
	if t, err := h.sources.Default(); err == nil {
		current = t.Label()
	}
	return Hello{
		StreamName:      c.key,
		Sources:         h.sources.List(),
		SupportedDemods: demods,
		CurrentSource:   current,
		Privileged:      c.Privileged(),
		LoginEnabled:    h.auth.Enabled(),
	}
}

func (h *Hub) knownSource(label string) bool {
	for _, info := range h.sources.List() {
		if info.Label == label {
			return true
		}
	}
	return false
}

func (h *Hub) sendError(c *Client, code, message string) {
	h.sendTo(c, Message{Type: TypeError, Data: ErrorData{Code: code, Message: message}})
}

func (h *Hub) sendStatus(c *Client, info session.Info) {
	h.sendTo(c, Message{Type: TypeStatus, Data: Status{
		Source:     info.Source,
		Demod:      info.Mode,
		FreqOffset: info.Offset,
		HWFreq:     info.HardwareFreq,
		Gain:       info.Gain,
		Running:    info.Running,
	}})
}

var knownTypes = []string{
	TypeSetSource, TypeSetDemod, TypeSetOffset, TypeSetHWFreq, TypeSetGain,
	TypeLogin, TypeToken, TypeLogout,
}

// handle runs on the client's read goroutine.
func (h *Hub) handle(c *Client, msg inbound) {
	label := msg.Type
	if !slices.Contains(knownTypes, label) {
		label = "unknown"
	}
	metrics.ControlMessages.WithLabelValues(label).Inc()

	if !c.messages.Allow() {
		h.sendError(c, CodeRateLimited, "too many messages")
		return
	}

	switch msg.Type {
	case TypeSetSource:
		var req SetSourceRequest
		if !decode(h, c, msg.Data, &req) {
			return
		}
		if !h.knownSource(req.Source) {
			h.sendError(c, CodeUnknownSource, "unknown source "+req.Source)
			return
		}
		h.apply(c, settings{source: &req.Source})

	case TypeSetDemod:
		var req SetDemodRequest
		if !decode(h, c, msg.Data, &req) {
			return
		}
		mode, err := pipeline.ParseMode(req.Demod)
		if err != nil {
			h.sendError(c, CodeUnknownMode, err.Error())
			return
		}
		h.apply(c, settings{mode: &mode})

	case TypeSetOffset:
		var req SetOffsetRequest
		if decode(h, c, msg.Data, &req) {
			h.apply(c, settings{offset: req.FreqOffset})
		}

	case TypeSetHWFreq:
		if !c.Privileged() {
			h.sendError(c, CodeForbidden, "login required to change the hardware frequency")
			return
		}
		var req SetHWFreqRequest
		if decode(h, c, msg.Data, &req) {
			h.apply(c, settings{hwFreq: &req.HWFreq})
		}

	case TypeSetGain:
		if !c.Privileged() {
			h.sendError(c, CodeForbidden, "login required to change the gain")
			return
		}
		var req SetGainRequest
		if decode(h, c, msg.Data, &req) {
			h.apply(c, settings{gain: req.Gain})
		}

	case TypeLogin:
		var req LoginRequest
		if decode(h, c, msg.Data, &req) {
			h.login(c, req)
		}

	case TypeToken:
		var req TokenRequest
		if decode(h, c, msg.Data, &req) {
			h.restore(c, req)
		}

	case TypeLogout:
		c.setPrivileged("", false)
		h.sendTo(c, Message{Type: TypeAuth, Data: AuthState{}})

	default:
		h.sendError(c, CodeUnknownType, "unknown message type "+msg.Type)
	}
}

// decode unmarshals and validates a payload, reporting failures to c.
func decode(h *Hub, c *Client, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		h.sendError(c, CodeInvalidRequest, "malformed payload")
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		h.sendError(c, CodeInvalidRequest, verr.Error())
		return false
	}
	return true
}

func (h *Hub) login(c *Client, req LoginRequest) {
	if !c.logins.Allow() {
		h.sendError(c, CodeRateLimited, "too many login attempts")
		return
	}
	token, expires, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.log.Warn().Str("stream_key", c.key).Str("username", req.Username).Msg("control login failed")
		h.sendError(c, errorCode(err), err.Error())
		return
	}
	c.setPrivileged(req.Username, true)
	h.log.Info().Str("stream_key", c.key).Str("username", req.Username).Msg("control client logged in")
	h.sendTo(c, Message{Type: TypeAuth, Data: AuthState{
		Privileged: true,
		Username:   req.Username,
		Token:      token,
		ExpiresAt:  &expires,
	}})
}

func (h *Hub) restore(c *Client, req TokenRequest) {
	if !c.logins.Allow() {
		h.sendError(c, CodeRateLimited, "too many login attempts")
		return
	}
	claims, err := h.auth.Verify(req.Token)
	if err != nil || claims.Role != auth.RoleAdmin {
		c.setPrivileged("", false)
		if err == nil {
			err = auth.ErrInvalidToken
		}
		h.sendError(c, errorCode(err), "token rejected")
		return
	}
	c.setPrivileged(claims.Username, true)
	h.sendTo(c, Message{Type: TypeAuth, Data: AuthState{Privileged: true, Username: claims.Username}})
}

// apply pushes s to the client's stream. If the stream has not started yet
// the settings are kept and replayed when the session is created.
func (h *Hub) apply(c *Client, s settings) {
	err := h.push(c.key, s)
	if errors.Is(err, session.ErrNotFound) {
		c.deferSettings(s)
		// The session may have been created between push and deferSettings.
		if _, gerr := h.sessions.Get(c.key); gerr == nil {
			h.flushPending(c)
		}
		return
	}
	if err != nil {
		h.sendError(c, errorCode(err), err.Error())
	}
}

func (h *Hub) flushPending(c *Client) {
	s := c.takePending()
	if s.empty() {
		return
	}
	if err := h.push(c.key, s); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.deferSettings(s)
			return
		}
		h.sendError(c, errorCode(err), err.Error())
	}
}

// push applies s in a fixed order: source, demod and offset, hardware
// frequency, gain. Each step emits its own status update.
func (h *Hub) push(key string, s settings) error {
	if s.source != nil {
		if err := h.sessions.SetSource(key, *s.source); err != nil {
			return err
		}
	}
	if s.mode != nil || s.offset != nil {
		if err := h.sessions.Reconfigure(key, session.Reconfig{Mode: s.mode, Offset: s.offset}); err != nil {
			return err
		}
	}
	if s.hwFreq != nil {
		if err := h.sessions.Tune(key, *s.hwFreq); err != nil {
			return err
		}
	}
	if s.gain != nil {
		if err := h.sessions.SetGain(key, *s.gain); err != nil {
			return err
		}
	}
	return nil
}

// onSessionEvent runs on whichever goroutine changed the session.
func (h *Hub) onSessionEvent(ev session.Event) {
	if ev.Type == session.EventCreated || ev.Type == session.EventDestroyed {
		h.BroadcastJSON(TypeNumClients, NumClients{Count: ev.Count})
	}

	c := h.clientFor(ev.Key)
	if c == nil {
		return
	}
	switch ev.Type {
	case session.EventCreated:
		if info, err := h.sessions.Get(ev.Key); err == nil {
			h.sendStatus(c, info)
		}
		h.flushPending(c)
	case session.EventUpdated:
		h.sendStatus(c, ev.Info)
	case session.EventDestroyed:
		h.sendTo(c, Message{Type: TypeStatus, Data: Status{Running: false}})
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, source.ErrNotFound):
		return CodeUnknownSource
	case errors.Is(err, pipeline.ErrUnknownMode):
		return CodeUnknownMode
	case errors.Is(err, pipeline.ErrOffsetOutOfRange):
		return CodeOffsetOutOfRange
	case errors.Is(err, source.ErrTuningConflict):
		return CodeTuningConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, auth.ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, auth.ErrLoginDisabled):
		return CodeLoginDisabled
	default:
		return CodeInternal
	}
}
