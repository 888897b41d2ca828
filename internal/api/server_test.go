package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmfell/scholarscrape/internal/progress"
	"github.com/dmfell/scholarscrape/internal/progress/sinks"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, prometheus.NewRegistry(), "run-1", zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `"ok"`)
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, prometheus.NewRegistry(), "run-1", zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ready"`)
}

func TestMetricsServesProgressCollectors(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	sink, err := sinks.NewPrometheusSink(registry)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	batch := []progress.Event{
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageAuthorStart, Author: "a1"},
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageEscalation, Author: "a1", Tier: "heavy"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	server := NewServer(nil, registry, "run-1", zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "scholarscrape_authors_started_total 1")
	require.Contains(t, rec.Body.String(), "scholarscrape_tier_escalations_total 1")
}

func TestRunSnapshotServesTally(t *testing.T) {
	t.Parallel()

	tally := sinks.NewTallySink()
	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now().UTC()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageAuthorStart, Author: "a1"},
		{RunID: runID, TS: now, Stage: progress.StageAuthorDone, Author: "a1", Count: 3},
	}
	require.NoError(t, tally.Consume(context.Background(), batch))

	server := NewServer(tally, prometheus.NewRegistry(), "run-42", zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/run", nil)

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID    string              `json:"run_id"`
		Uptime   int64               `json:"uptime_seconds"`
		Progress sinks.TallySnapshot `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "run-42", body.RunID)
	require.Equal(t, int64(1), body.Progress.AuthorsStarted)
	require.Equal(t, int64(1), body.Progress.AuthorsSucceeded)
	require.Equal(t, int64(3), body.Progress.Publications)
}

func TestRunSnapshotUnavailableWithoutTally(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, prometheus.NewRegistry(), "run-1", zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/run", nil)

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "unavailable")
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, prometheus.NewRegistry(), "run-1", zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	server.Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, prometheus.NewRegistry(), "run-1", zap.NewNop())
	server.router.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestUnknownRouteReturns404(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, prometheus.NewRegistry(), "run-1", zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
