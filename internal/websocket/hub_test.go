// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/skywave/internal/auth"
	"github.com/tomtom215/skywave/internal/graph"
	"github.com/tomtom215/skywave/internal/pipeline"
	"github.com/tomtom215/skywave/internal/session"
	"github.com/tomtom215/skywave/internal/source"
)

const testOrigin = "http://radio.example"

type staticChecker struct{ username, password string }

func (s staticChecker) Check(username, password string) bool {
	return username == s.username && password == s.password
}

type fixture struct {
	hub     *Hub
	manager *session.Manager
	pool    *source.Pool
	server  *httptest.Server
	cancel  context.CancelFunc
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	pool := source.NewPool()
	for _, label := range []string{"synthetic", "second"} {
		drv := source.NewSynthetic(source.SyntheticConfig{SampleRate: 240000, CenterFrequency: 100e6})
		require.NoError(t, pool.Register(drv, 0, label, ""))
	}
	m := session.New(session.Config{
		PipeCapacity: 16,
		MaxSessions:  8,
		AudioRate:    24000,
		Decimation:   8,
		MaxTaps:      129,
	}, graph.New(graph.WithBlockSize(2400)), pool)

	tokens, err := auth.NewTokenManager(strings.Repeat("s", 32), time.Hour)
	require.NoError(t, err)
	authn := auth.NewWith(staticChecker{"admin", "hunter22"}, tokens)

	if cfg.KeyLength == 0 {
		cfg.KeyLength = 8
		cfg.Extension = ".wav"
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{testOrigin}
	}
	if cfg.MessagesPerSecond == 0 {
		cfg.MessagesPerSecond = 100
	}
	if cfg.LoginsPerMinute == 0 {
		cfg.LoginsPerMinute = 10
	}
	hub := NewHub(cfg, m, pool, authn)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()
	server := httptest.NewServer(hub)

	t.Cleanup(func() {
		cancel()
		server.Close()
		hub.Close()
		_ = m.Close()
	})
	return &fixture{hub: hub, manager: m, pool: pool, server: server, cancel: cancel}
}

func (f *fixture) dial(t *testing.T) (*websocket.Conn, Hello) {
	t.Helper()
	conn := dialWith(t, f.server, testOrigin)
	var hello Hello
	readData(t, conn, TypeHello, &hello)
	return conn, hello
}

func dialWith(t *testing.T, server *httptest.Server, origin string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Origin", origin)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Message{Type: msgType, Data: data}))
}

// readData reads until a message of msgType arrives and decodes its data.
func readData(t *testing.T, conn *websocket.Conn, msgType string, v any) {
	t.Helper()
	readMatching(t, conn, msgType, func(raw json.RawMessage) bool {
		require.NoError(t, json.Unmarshal(raw, v))
		return true
	})
}

func readMatching(t *testing.T, conn *websocket.Conn, msgType string, match func(json.RawMessage) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)
		var msg inbound
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == msgType && match(msg.Data) {
			return
		}
	}
}

func readError(t *testing.T, conn *websocket.Conn, code string) {
	t.Helper()
	readMatching(t, conn, TypeError, func(raw json.RawMessage) bool {
		var e ErrorData
		return json.Unmarshal(raw, &e) == nil && e.Code == code
	})
}

func readStatus(t *testing.T, conn *websocket.Conn, match func(Status) bool) Status {
	t.Helper()
	var got Status
	readMatching(t, conn, TypeStatus, func(raw json.RawMessage) bool {
		var s Status
		if json.Unmarshal(raw, &s) != nil || !match(s) {
			return false
		}
		got = s
		return true
	})
	return got
}

func TestHello(t *testing.T) {
	f := newFixture(t, Config{})
	_, hello := f.dial(t)

	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{8}\.wav$`), hello.StreamName)
	assert.Equal(t, "synthetic", hello.CurrentSource)
	assert.Len(t, hello.Sources, 2)
	assert.Equal(t, []string{"NONE", "WFM", "FM", "AM", "USB", "LSB", "CW"}, hello.SupportedDemods)
	assert.False(t, hello.Privileged)
	assert.True(t, hello.LoginEnabled)
	assert.Equal(t, 1, f.hub.GetClientCount())
}

func TestStreamKeysAreUnique(t *testing.T) {
	f := newFixture(t, Config{})
	_, a := f.dial(t)
	_, b := f.dial(t)
	assert.NotEqual(t, a.StreamName, b.StreamName)
}

func TestOriginCheck(t *testing.T) {
	f := newFixture(t, Config{})
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http")

	for name, origin := range map[string]string{"missing": "", "foreign": "http://evil.example"} {
		t.Run(name, func(t *testing.T) {
			header := http.Header{}
			if origin != "" {
				header.Set("Origin", origin)
			}
			_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestWildcardOrigin(t *testing.T) {
	f := newFixture(t, Config{AllowedOrigins: []string{"*"}})
	conn := dialWith(t, f.server, "http://anywhere.example")
	var hello Hello
	readData(t, conn, TypeHello, &hello)
	assert.NotEmpty(t, hello.StreamName)
}

func TestSettingsBeforeStreamStartArePending(t *testing.T) {
	f := newFixture(t, Config{})
	conn, hello := f.dial(t)

	send(t, conn, TypeSetDemod, SetDemodRequest{Demod: "am"})
	offset := 30000.0
	send(t, conn, TypeSetOffset, SetOffsetRequest{FreqOffset: &offset})

	_, err := f.manager.Create(hello.StreamName)
	require.NoError(t, err)

	st := readStatus(t, conn, func(s Status) bool { return s.Demod == "AM" && s.FreqOffset == 30000 })
	assert.True(t, st.Running)
	assert.Equal(t, "synthetic", st.Source)

	info, err := f.manager.Get(hello.StreamName)
	require.NoError(t, err)
	assert.Equal(t, "AM", info.Mode)
	assert.Equal(t, 30000.0, info.Offset)
}

func TestLiveReconfigure(t *testing.T) {
	f := newFixture(t, Config{})
	conn, hello := f.dial(t)
	_, err := f.manager.Create(hello.StreamName)
	require.NoError(t, err)

	send(t, conn, TypeSetDemod, SetDemodRequest{Demod: "WFM"})
	readStatus(t, conn, func(s Status) bool { return s.Demod == "WFM" })

	send(t, conn, TypeSetSource, SetSourceRequest{Source: "second"})
	st := readStatus(t, conn, func(s Status) bool { return s.Source == "second" })
	assert.Equal(t, "WFM", st.Demod)

	send(t, conn, TypeSetDemod, SetDemodRequest{Demod: "SSTV"})
	readError(t, conn, CodeUnknownMode)

	send(t, conn, TypeSetSource, SetSourceRequest{Source: "missing"})
	readError(t, conn, CodeUnknownSource)

	big := 1e6
	send(t, conn, TypeSetOffset, SetOffsetRequest{FreqOffset: &big})
	readError(t, conn, CodeOffsetOutOfRange)

	info, err := f.manager.Get(hello.StreamName)
	require.NoError(t, err)
	assert.Equal(t, "WFM", info.Mode)
	assert.Equal(t, "second", info.Source)
	assert.Zero(t, info.Offset)
}

func TestStreamEndReportsStopped(t *testing.T) {
	f := newFixture(t, Config{})
	conn, hello := f.dial(t)
	_, err := f.manager.Create(hello.StreamName)
	require.NoError(t, err)
	readStatus(t, conn, func(s Status) bool { return s.Running })

	require.NoError(t, f.manager.Destroy(hello.StreamName))
	readStatus(t, conn, func(s Status) bool { return !s.Running })
}

func TestHardwareFrequencyNeedsLogin(t *testing.T) {
	f := newFixture(t, Config{})
	conn, hello := f.dial(t)
	_, err := f.manager.Create(hello.StreamName)
	require.NoError(t, err)

	send(t, conn, TypeSetHWFreq, SetHWFreqRequest{HWFreq: 101e6})
	readError(t, conn, CodeForbidden)

	send(t, conn, TypeLogin, LoginRequest{Username: "admin", Password: "wrong-pass"})
	readError(t, conn, CodeInvalidCredentials)

	send(t, conn, TypeLogin, LoginRequest{Username: "admin", Password: "hunter22"})
	var state AuthState
	readData(t, conn, TypeAuth, &state)
	require.True(t, state.Privileged)
	require.NotEmpty(t, state.Token)
	require.NotNil(t, state.ExpiresAt)

	send(t, conn, TypeSetHWFreq, SetHWFreqRequest{HWFreq: 101e6})
	st := readStatus(t, conn, func(s Status) bool { return s.HWFreq == 101e6 })
	assert.Equal(t, "synthetic", st.Source)

	send(t, conn, TypeLogout, nil)
	readData(t, conn, TypeAuth, &state)
	assert.False(t, state.Privileged)

	send(t, conn, TypeSetHWFreq, SetHWFreqRequest{HWFreq: 102e6})
	readError(t, conn, CodeForbidden)
}

func TestGainNeedsLogin(t *testing.T) {
	f := newFixture(t, Config{})
	conn, hello := f.dial(t)
	_, err := f.manager.Create(hello.StreamName)
	require.NoError(t, err)
	readStatus(t, conn, func(s Status) bool { return s.Running })

	gain := 28.0
	send(t, conn, TypeSetGain, SetGainRequest{Gain: &gain})
	readError(t, conn, CodeForbidden)

	send(t, conn, TypeLogin, LoginRequest{Username: "admin", Password: "hunter22"})
	var state AuthState
	readData(t, conn, TypeAuth, &state)
	require.True(t, state.Privileged)

	tooHigh := 90.0
	send(t, conn, TypeSetGain, SetGainRequest{Gain: &tooHigh})
	readError(t, conn, CodeInvalidRequest)

	send(t, conn, TypeSetGain, SetGainRequest{Gain: &gain})
	st := readStatus(t, conn, func(s Status) bool { return s.Gain == 28 })
	assert.Equal(t, "synthetic", st.Source)

	tuner, err := f.pool.Get("synthetic")
	require.NoError(t, err)
	assert.Equal(t, 28.0, tuner.Gain())
	assert.Equal(t, hello.StreamName, tuner.Owner())
}

func TestTokenRestoresPrivilege(t *testing.T) {
	f := newFixture(t, Config{})
	first, _ := f.dial(t)
	send(t, first, TypeLogin, LoginRequest{Username: "admin", Password: "hunter22"})
	var state AuthState
	readData(t, first, TypeAuth, &state)
	require.NotEmpty(t, state.Token)

	second, _ := f.dial(t)
	send(t, second, TypeToken, TokenRequest{Token: "forged"})
	readError(t, second, CodeInvalidToken)

	send(t, second, TypeToken, TokenRequest{Token: state.Token})
	var restored AuthState
	readData(t, second, TypeAuth, &restored)
	assert.True(t, restored.Privileged)
	assert.Equal(t, "admin", restored.Username)
}

func TestTuningConflict(t *testing.T) {
	f := newFixture(t, Config{})
	a, helloA := f.dial(t)
	b, helloB := f.dial(t)
	for _, key := range []string{helloA.StreamName, helloB.StreamName} {
		_, err := f.manager.Create(key)
		require.NoError(t, err)
	}
	for _, conn := range []*websocket.Conn{a, b} {
		send(t, conn, TypeLogin, LoginRequest{Username: "admin", Password: "hunter22"})
		var state AuthState
		readData(t, conn, TypeAuth, &state)
	}

	send(t, a, TypeSetHWFreq, SetHWFreqRequest{HWFreq: 99e6})
	readStatus(t, a, func(s Status) bool { return s.HWFreq == 99e6 })

	send(t, b, TypeSetHWFreq, SetHWFreqRequest{HWFreq: 98e6})
	readError(t, b, CodeTuningConflict)
}

func TestNumClientsBroadcast(t *testing.T) {
	f := newFixture(t, Config{})
	conn, _ := f.dial(t)

	_, err := f.manager.Create("zzzz0000.wav")
	require.NoError(t, err)
	var n NumClients
	readData(t, conn, TypeNumClients, &n)
	assert.Equal(t, 1, n.Count)

	require.NoError(t, f.manager.Destroy("zzzz0000.wav"))
	readData(t, conn, TypeNumClients, &n)
	assert.Equal(t, 0, n.Count)
}

func TestMalformedMessages(t *testing.T) {
	f := newFixture(t, Config{})
	conn, _ := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	readError(t, conn, CodeInvalidRequest)

	send(t, conn, "launch_missiles", nil)
	readError(t, conn, CodeUnknownType)

	send(t, conn, TypeSetSource, map[string]string{"source": "../etc"})
	readError(t, conn, CodeInvalidRequest)

	send(t, conn, TypeSetOffset, map[string]any{})
	readError(t, conn, CodeInvalidRequest)
}

func TestMessageRateLimit(t *testing.T) {
	f := newFixture(t, Config{MessagesPerSecond: 1})
	conn, _ := f.dial(t)

	for range 6 {
		send(t, conn, TypeLogout, nil)
	}
	readError(t, conn, CodeRateLimited)
}

func TestLoginRateLimit(t *testing.T) {
	f := newFixture(t, Config{LoginsPerMinute: 1})
	conn, _ := f.dial(t)

	send(t, conn, TypeLogin, LoginRequest{Username: "admin", Password: "wrong-pass"})
	readError(t, conn, CodeInvalidCredentials)
	send(t, conn, TypeLogin, LoginRequest{Username: "admin", Password: "hunter22"})
	readError(t, conn, CodeRateLimited)
}

func TestHubShutdownClosesClients(t *testing.T) {
	f := newFixture(t, Config{})
	conn, _ := f.dial(t)
	require.Equal(t, 1, f.hub.GetClientCount())

	f.cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Zero(t, f.hub.GetClientCount())
}

func TestNewStreamKey(t *testing.T) {
	for _, n := range []int{4, 8, 32, 64} {
		key := newStreamKey(n, ".wav")
		assert.Len(t, key, n+4)
		assert.Regexp(t, `^[a-f0-9]+\.wav$`, key)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{session.ErrNotFound, CodeNotFound},
		{source.ErrNotFound, CodeUnknownSource},
		{pipeline.ErrUnknownMode, CodeUnknownMode},
		{pipeline.ErrOffsetOutOfRange, CodeOffsetOutOfRange},
		{source.ErrTuningConflict, CodeTuningConflict},
		{auth.ErrLoginDisabled, CodeLoginDisabled},
		{context.Canceled, CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), tt.err.Error())
	}
}
