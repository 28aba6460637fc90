// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package api

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// StaticFile is a file loaded once at startup and served verbatim.
type StaticFile struct {
	path        string
	contentType string
	body        []byte
}

// LoadStaticFile reads path. A missing file wraps ErrIndexMissing.
func LoadStaticFile(path string) (*StaticFile, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIndexMissing, path, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return &StaticFile{path: path, contentType: contentType, body: body}, nil
}

// Size returns the file size in bytes.
func (f *StaticFile) Size() int { return len(f.body) }

// Index serves the UI page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	f := h.index
	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(f.body)
}
