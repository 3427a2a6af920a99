package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	logger := New("gateway", "debug", "json")
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.service != "gateway" {
		t.Errorf("service = %q, want %q", logger.service, "gateway")
	}
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	logger := New("gateway", "bogus", "text")
	if got := logger.GetLevel().String(); got != "info" {
		t.Errorf("level = %q, want %q", got, "info")
	}
}

func TestNewRequestID_Unique(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	if a == "" || b == "" {
		t.Fatal("NewRequestID() returned empty string")
	}
	if a == b {
		t.Errorf("NewRequestID() returned duplicate id %q", a)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID(empty) = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "abc-123")
	if got := GetRequestID(ctx); got != "abc-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "abc-123")
	}
}

func TestRoleAndClientIPContext(t *testing.T) {
	ctx := WithRole(context.Background(), "admin")
	ctx = WithClientIP(ctx, "10.1.2.3")

	if got := GetRole(ctx); got != "admin" {
		t.Errorf("GetRole() = %q, want %q", got, "admin")
	}
	if got := GetClientIP(ctx); got != "10.1.2.3" {
		t.Errorf("GetClientIP() = %q, want %q", got, "10.1.2.3")
	}
}

func TestWithContext_AnnotatesFields(t *testing.T) {
	logger := New("gateway", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithRole(ctx, "superadmin")

	logger.WithContext(ctx).Info("hello")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", record["request_id"])
	}
	if record["role"] != "superadmin" {
		t.Errorf("role = %v, want superadmin", record["role"])
	}
	if record["service"] != "gateway" {
		t.Errorf("service = %v, want gateway", record["service"])
	}
}

func TestLogRequest(t *testing.T) {
	logger := New("gateway", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.LogRequest(context.Background(), "GET", "/rifas", 200, 42*time.Millisecond)

	out := buf.String()
	for _, want := range []string{`"method":"GET"`, `"path":"/rifas"`, `"status":200`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestLogSecurityEvent(t *testing.T) {
	logger := New("gateway", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.LogSecurityEvent(context.Background(), "rate_limit_exceeded", map[string]interface{}{
		"key": "10.0.0.1|auth",
	})

	out := buf.String()
	if !strings.Contains(out, `"event":"rate_limit_exceeded"`) {
		t.Errorf("log output missing event field: %s", out)
	}
	if !strings.Contains(out, `"level":"warning"`) {
		t.Errorf("security event should log at warn level: %s", out)
	}
}
