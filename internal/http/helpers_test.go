package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"homeinspect/internal/capture"
	"homeinspect/internal/core"
	"homeinspect/internal/identity"
	"homeinspect/internal/metadata"
	"homeinspect/internal/services"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		kind string
	}{
		{"cancelled", capture.ErrUserCancelled, 499, "cancelled"},
		{"permission", capture.ErrPermissionDenied, http.StatusForbidden, "permission"},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"invalid", fmt.Errorf("wrap: %w", core.ErrUnknownItem), http.StatusBadRequest, "invalid"},
		{"not found", metadata.ErrNotFound, http.StatusNotFound, "not_found"},
		{"busy", services.ErrSlotBusy, http.StatusConflict, "busy"},
		{"transient", fmt.Errorf("%w: timeout", services.ErrBlobWriteFailed), http.StatusServiceUnavailable, "transient"},
		{"partial", fmt.Errorf("%w: gone", services.ErrMetadataDeleteFailed), http.StatusBadGateway, "partial_consistency"},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "transient"},
		{"unauthorized", identity.ErrNoSession, http.StatusUnauthorized, "unauthorized"},
		{"email taken", identity.ErrEmailTaken, http.StatusConflict, "conflict"},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorResponse(tt.err)
			if status != tt.want || body.Kind != tt.kind {
				t.Fatalf("errorResponse(%v) = %d %q, want %d %q", tt.err, status, body.Kind, tt.want, tt.kind)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(req); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		lat, lon string
		wantNil  bool
		wantErr  bool
	}{
		{"", "", true, false},
		{"45.1", "", true, false},
		{"45.1", "9.2", false, false},
		{"91", "0", false, true},
		{"0", "-181", false, true},
		{"x", "0", false, true},
	}
	for _, tt := range tests {
		loc, err := parseLocation(tt.lat, tt.lon)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLocation(%q, %q) err = %v", tt.lat, tt.lon, err)
			continue
		}
		if !tt.wantErr && (loc == nil) != tt.wantNil {
			t.Errorf("parseLocation(%q, %q) = %v", tt.lat, tt.lon, loc)
		}
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.5:1234", "", "203.0.113.5"},
		{"trusted proxy", "10.0.0.1:1234", "198.51.100.7, 10.0.0.1", "198.51.100.7"},
		{"untrusted proxy ignored", "203.0.113.5:1234", "198.51.100.7", "203.0.113.5"},
		{"trusted proxy bad header", "10.0.0.1:1234", "not-an-ip", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := newRateLimiter(1, 1)
	defer rl.stop()

	if !rl.allow("a") || rl.allow("a") {
		t.Fatal("burst of one should allow exactly one request")
	}
	if !rl.allow("b") {
		t.Fatal("buckets are per client")
	}
	if n := rl.cleanupStaleEntries(time.Now().Add(time.Minute)); n != 2 {
		t.Fatalf("removed %d entries, want 2", n)
	}
	if !rl.allow("a") {
		t.Fatal("a fresh bucket should allow again")
	}
}

func TestMatrixCacheInvalidate(t *testing.T) {
	c := newMatrixCache(2, time.Minute)
	cal := core.NewCalendar(time.UTC)
	m := core.Group(cal, []core.UploadRecord{{ID: "1", OwnerID: "u", ItemType: "Thermostat", Timestamp: time.Now()}})

	if _, ok := c.get("u"); ok {
		t.Fatal("empty cache should miss")
	}
	if !c.set("u", c.generation("u"), m) {
		t.Fatal("set with current generation should store")
	}
	if got, ok := c.get("u"); !ok || got.Len() != 1 {
		t.Fatal("expected hit")
	}
	c.invalidate("u")
	if _, ok := c.get("u"); ok {
		t.Fatal("invalidated entry should miss")
	}
}

func TestMatrixCacheSkipsMatrixBuiltBeforeInvalidate(t *testing.T) {
	c := newMatrixCache(2, time.Minute)
	cal := core.NewCalendar(time.UTC)

	gen := c.generation("u")
	c.invalidate("u")
	if c.set("u", gen, core.Group(cal, nil)) {
		t.Fatal("set with an outdated generation should be skipped")
	}
	if _, ok := c.get("u"); ok {
		t.Fatal("outdated matrix was cached")
	}
	if c.generation("other") != 0 {
		t.Fatal("invalidate changed another owner's generation")
	}
}
