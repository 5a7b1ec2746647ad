package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("scrape returned status %d", rr.Code)
	}
	return rr.Body.String()
}

func TestInitMetrics(t *testing.T) {
	handler, shutdown, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	if handler == nil || shutdown == nil {
		t.Fatal("expected handler and shutdown to be non-nil")
	}
	if body := scrape(t, handler); len(body) == 0 {
		t.Error("scrape returned empty body")
	}
}

func TestMonitorMetrics_AppearInScrape(t *testing.T) {
	ctx := context.Background()

	handler, shutdown, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	mm, err := NewMonitorMetrics()
	if err != nil {
		t.Fatalf("NewMonitorMetrics failed: %v", err)
	}

	mm.RecordCycle(ctx, 250*time.Millisecond, false)
	mm.RecordCycle(ctx, 100*time.Millisecond, true)
	mm.RecordQueueMiss(ctx)

	body := scrape(t, handler)
	for _, name := range []string{
		"wfmon_poll_cycles",
		"wfmon_poll_degraded_reads",
		"wfmon_queue_misses",
		"wfmon_poll_duration_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %q in scrape output", name)
		}
	}
}

func TestMonitorMetrics_NilIsNoop(t *testing.T) {
	var mm *MonitorMetrics

	// Must not panic: the loop records unconditionally.
	mm.RecordCycle(context.Background(), time.Second, true)
	mm.RecordQueueMiss(context.Background())
}
