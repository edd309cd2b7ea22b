package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), "pushshift-corpus", "")
	if err != nil {
		t.Fatal(err)
	}
	if tel.Enabled() {
		t.Fatal("expected no provider without an endpoint")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSetupExportsSpans(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx := context.Background()
	tel, err := Setup(ctx, "pushshift-corpus", srv.URL+"/v1/traces")
	if err != nil {
		t.Fatal(err)
	}
	if !tel.Enabled() {
		t.Fatal("expected provider")
	}

	_, span := otel.Tracer("test").Start(ctx, "collect.run")
	span.End()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		t.Fatal(err)
	}
	if hits.Load() == 0 {
		t.Fatal("expected spans to be exported on shutdown")
	}
}
