package observability

import (
	"context"
	"testing"
	"time"
)

func TestInitTracer_LazyConnection(t *testing.T) {
	// The gRPC connection is lazy, so init succeeds even when nothing
	// listens at the endpoint.
	shutdown, err := InitTracer(context.Background(), "wfmon", "localhost:4317")
	if err != nil {
		t.Logf("InitTracer failed in this environment: %v", err)
		return
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function to be non-nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}

func TestInitTracer_EmptyServiceName(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "", "localhost:4317")
	if err != nil {
		t.Logf("InitTracer returned error: %v", err)
		return
	}
	if shutdown == nil {
		t.Error("expected shutdown function to be non-nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}
