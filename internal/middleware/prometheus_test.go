// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// gorilla/websocket type-asserts http.Hijacker on the writer it is
// handed, so the wrapper must implement it directly.
var _ http.Hijacker = (*metricsResponseWriter)(nil)

func TestPrometheusMetrics_HijackReachesUnderlyingConn(t *testing.T) {
	hijacked := make(chan struct{})
	server := httptest.NewServer(PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack failed: %v", err)
			return
		}
		defer conn.Close()
		buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok")
		buf.Flush()
		close(hijacked)
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	<-hijacked
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
}

func TestMetricsResponseWriter_HijackWithoutSupport(t *testing.T) {
	// httptest.ResponseRecorder does not implement http.Hijacker.
	wrapper := &metricsResponseWriter{
		ResponseWriter: httptest.NewRecorder(),
		statusCode:     http.StatusOK,
	}

	if _, _, err := wrapper.Hijack(); err == nil {
		t.Error("Hijack succeeded on a non-hijackable writer, want error")
	}
}

func TestMetricsResponseWriter_CapturesStatusCode(t *testing.T) {
	var captured int
	handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		captured = w.(*metricsResponseWriter).statusCode
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("recorded status = %d, want 418", rec.Code)
	}
	if captured != http.StatusTeapot {
		t.Errorf("captured status = %d, want 418", captured)
	}
}
