package logging

import (
	"context"
	"testing"
)

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	if fields := extractContextFields(ctx); len(fields) != 0 {
		t.Errorf("expected no fields for empty context, got %v", fields)
	}

	ctx = WithConnID(ctx, "abc")
	ctx = WithListener(ctx, "0.0.0.0:443")
	ctx = WithRemoteAddr(ctx, "198.51.100.7:40000")
	ctx = WithTraceID(ctx, "0af7651916cd43dd8448eb211c80319c")

	if GetConnID(ctx) != "abc" {
		t.Errorf("GetConnID() = %q", GetConnID(ctx))
	}
	if GetListener(ctx) != "0.0.0.0:443" {
		t.Errorf("GetListener() = %q", GetListener(ctx))
	}
	if GetRemoteAddr(ctx) != "198.51.100.7:40000" {
		t.Errorf("GetRemoteAddr() = %q", GetRemoteAddr(ctx))
	}

	fields := extractContextFields(ctx)
	if len(fields) != 8 {
		t.Fatalf("expected 4 key-value pairs, got %v", fields)
	}
	if fields[0] != "conn_id" || fields[1] != "abc" {
		t.Errorf("unexpected first pair: %v %v", fields[0], fields[1])
	}
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	logger, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.WithContext(context.Background()) != logger {
		t.Error("expected same logger for context without fields")
	}
}
