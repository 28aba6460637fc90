// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/skywave/internal/bridge"
	"github.com/tomtom215/skywave/internal/logging"
	"github.com/tomtom215/skywave/internal/metrics"
	"github.com/tomtom215/skywave/internal/session"
)

const (
	streamContentType = "audio/wav"
	streamReadBuffer  = 32 * 1024

	// streamWriteTimeout bounds one write to a listener. A client that
	// stops reading is disconnected instead of pinning the goroutine.
	streamWriteTimeout = 30 * time.Second
)

// Stream creates a session for the requested key and copies its audio to the
// response until the client goes away. The session is destroyed on every exit
// path. Errors are answered with a bare status code.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !h.keyPattern.MatchString(key) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ctx := logging.ContextWithStreamKey(r.Context(), key)
	log := logging.Ctx(ctx)

	sess, err := h.sessions.Create(key)
	if err != nil {
		status := streamStatus(err)
		log.Warn().Err(err).Int("status", status).Msg("Stream rejected")
		w.WriteHeader(status)
		return
	}
	defer func() {
		if err := h.sessions.Destroy(key); err != nil && !errors.Is(err, session.ErrNotFound) {
			log.Error().Err(err).Msg("Failed to destroy session")
		}
	}()

	hdr := w.Header()
	hdr.Set("Content-Type", streamContentType)
	hdr.Set("Expires", "0")
	hdr.Set("Pragma", "no-cache")
	hdr.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	hdr.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	log.Info().Str("remote", r.RemoteAddr).Msg("Stream opened")
	start := time.Now()
	n, err := copyStream(ctx, w, rc, sess.Reader())
	if err != nil {
		log.Warn().Err(err).Int64("bytes", n).Dur("duration", time.Since(start)).Msg("Stream failed")
		return
	}
	log.Info().Int64("bytes", n).Dur("duration", time.Since(start)).Msg("Stream closed")
}

// copyStream drains rd into w, waiting on rd.Ready while the pipe is empty.
// It returns when ctx ends, the pipe reaches EOF or a write fails.
func copyStream(ctx context.Context, w io.Writer, rc *http.ResponseController, rd *bridge.Reader) (int64, error) {
	buf := make([]byte, streamReadBuffer)
	var total int64
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			_ = rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			written, werr := w.Write(buf[:n])
			total += int64(written)
			metrics.StreamBytes.Add(float64(written))
			if werr != nil {
				return total, clientGone(ctx, werr)
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return total, clientGone(ctx, ferr)
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, bridge.ErrWouldBlock):
			select {
			case <-ctx.Done():
				return total, nil
			case <-rd.Ready():
			}
		case errors.Is(err, io.EOF), errors.Is(err, bridge.ErrClosed):
			return total, nil
		default:
			return total, err
		}
	}
}

// clientGone reports write failures caused by the client leaving as a clean
// end of stream.
func clientGone(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
