package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"globaleaks/tlsworker/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingTracer(t *testing.T, sampler string) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()

	rec := tracetest.NewSpanRecorder()
	tracer, err := newWithProcessor(&config.TracingConfig{
		Enabled:     true,
		Sampler:     sampler,
		ServiceName: "test-service",
	}, "test", rec)
	if err != nil {
		t.Fatalf("newWithProcessor() error = %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, rec
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{name: "disabled", config: &config.TracingConfig{Enabled: false, ServiceName: "test-service"}},
		{
			name: "enabled otlp",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerAlways,
				Exporter:    "otlp",
				Endpoint:    "127.0.0.1:4317",
				ServiceName: "test-service",
				OTLP:        config.OTLPConfig{Insecure: true, Timeout: time.Second},
			},
		},
		{
			name: "invalid sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "invalid",
				Exporter: "otlp",
				Endpoint: "127.0.0.1:4317",
			},
			wantErr: true,
		},
		{
			name: "unsupported exporter",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  SamplerAlways,
				Exporter: "zipkin",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}

			if tracer.Enabled() != tt.config.Enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.config.Enabled)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = tracer.Shutdown(ctx)
		})
	}
}

func TestDisabledTracer_NoopSpans(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tracer.StartConnection(context.Background(), ConnInfo{ID: "abc"})
	if span.IsRecording() {
		t.Error("disabled tracer produced a recording span")
	}
	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty", TraceID(ctx))
	}
	EndConnection(span, 1, 2, "eof", nil)

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestStartConnection(t *testing.T) {
	tracer, rec := recordingTracer(t, SamplerAlways)

	ctx, span := tracer.StartConnection(context.Background(), ConnInfo{
		ID:       "conn-1",
		Listener: "127.0.0.1:443",
		Remote:   "192.0.2.7:51234",
	})
	if TraceID(ctx) == "" {
		t.Error("TraceID() empty for a sampled span")
	}

	_, child := tracer.Start(ctx, SpanHandshake)
	SetHandshakeAttributes(child, "TLS 1.3", "TLS_AES_128_GCM_SHA256", false, 3*time.Millisecond)
	child.End()

	SetBackendAttributes(span, "127.0.0.1:8082")
	EndConnection(span, 120, 4096, "client closed", nil)

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(ended))
	}

	var conn sdktrace.ReadOnlySpan
	for _, s := range ended {
		if s.Name() == SpanConnection {
			conn = s
		}
	}
	if conn == nil {
		t.Fatal("connection span not recorded")
	}

	attrs := attrMap(conn.Attributes())
	if attrs[AttrConnID].AsString() != "conn-1" {
		t.Errorf("%s = %v", AttrConnID, attrs[AttrConnID])
	}
	if attrs[AttrBytesDownstream].AsInt64() != 4096 {
		t.Errorf("%s = %v", AttrBytesDownstream, attrs[AttrBytesDownstream])
	}
	if attrs[AttrBackendAddress].AsString() != "127.0.0.1:8082" {
		t.Errorf("%s = %v", AttrBackendAddress, attrs[AttrBackendAddress])
	}
	if conn.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", conn.Status().Code)
	}
}

func TestEndConnection_Error(t *testing.T) {
	tracer, rec := recordingTracer(t, SamplerAlways)

	_, span := tracer.StartConnection(context.Background(), ConnInfo{ID: "conn-2"})
	EndConnection(span, 0, 0, "handshake", errors.New("tls: bad record MAC"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(ended))
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", ended[0].Status().Code)
	}
	if len(ended[0].Events()) == 0 {
		t.Error("error not recorded as an event")
	}
}

func TestNeverSampler(t *testing.T) {
	tracer, rec := recordingTracer(t, SamplerNever)

	_, span := tracer.StartConnection(context.Background(), ConnInfo{ID: "conn-3"})
	EndConnection(span, 0, 0, "eof", nil)

	if n := len(rec.Ended()); n != 0 {
		t.Errorf("recorded %d spans with the never sampler", n)
	}
}

func TestNewLeavesGlobalProviderAlone(t *testing.T) {
	before := otel.GetTracerProvider()
	tracer, _ := recordingTracer(t, SamplerAlways)

	after := otel.GetTracerProvider()
	if after != before {
		t.Error("global tracer provider replaced")
	}
	if tp, ok := after.(*sdktrace.TracerProvider); ok && tp == tracer.provider {
		t.Error("worker provider registered globally")
	}
}
