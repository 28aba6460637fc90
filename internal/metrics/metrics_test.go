// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSessionOperation(t *testing.T) {
	okBefore := testutil.ToFloat64(SessionOperations.WithLabelValues("create", ResultOK))
	errBefore := testutil.ToFloat64(SessionOperations.WithLabelValues("create", ResultError))

	RecordSessionOperation("create", nil)
	RecordSessionOperation("create", errors.New("exists"))
	RecordSessionOperation("create", nil)

	if got := testutil.ToFloat64(SessionOperations.WithLabelValues("create", ResultOK)) - okBefore; got != 2 {
		t.Errorf("ok delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(SessionOperations.WithLabelValues("create", ResultError)) - errBefore; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestSetGraphRunning(t *testing.T) {
	SetGraphRunning(true)
	if got := testutil.ToFloat64(GraphRunning); got != 1 {
		t.Errorf("GraphRunning = %v, want 1", got)
	}
	SetGraphRunning(false)
	if got := testutil.ToFloat64(GraphRunning); got != 0 {
		t.Errorf("GraphRunning = %v, want 0", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/health", "200"))
	RecordAPIRequest("GET", "/api/v1/health", "200", 5*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/health", "200"))
	if after-before != 1 {
		t.Errorf("request delta = %v, want 1", after-before)
	}
	if n := testutil.CollectAndCount(APIRequestDuration); n < 1 {
		t.Errorf("APIRequestDuration has %d series, want at least 1", n)
	}
}

func TestRecordSourceConnect(t *testing.T) {
	RecordSourceConnect("rtl0", errors.New("refused"))
	if got := testutil.ToFloat64(SourceReconnects.WithLabelValues("rtl0", ResultError)); got < 1 {
		t.Errorf("SourceReconnects error = %v, want >= 1", got)
	}
}
