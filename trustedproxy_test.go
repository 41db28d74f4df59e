package trustedproxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newGuardHandler(t *testing.T, config *Config, next http.Handler) http.Handler {
	t.Helper()

	handler, err := New(context.Background(), next, config, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return handler
}

func TestNew_invalidTrustedCIDR(t *testing.T) {
	tests := []struct {
		name string
		cidr string
	}{
		{"prefix too large", "10.0.0.0/33"},
		{"negative prefix", "10.0.0.0/-1"},
		{"not an address", "not.a.cidr/8"},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := CreateConfig()
			config.TrustLocal = false
			config.TrustedCIDRs = []string{tt.cidr}

			_, err := New(context.Background(), http.NotFoundHandler(), config, "test")
			if !errors.Is(err, ErrInvalidTrustedCIDR) {
				t.Errorf("New() error = %v, want ErrInvalidTrustedCIDR", err)
			}
		})
	}
}

func TestGuard_marksTrustedPeer(t *testing.T) {
	var seen http.Header

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})

	config := CreateConfig()
	config.TrustLocal = false
	config.TrustedCIDRs = []string{"192.168.1.0/24", "2001:db8::/32"}

	handler := newGuardHandler(t, config, next)

	tests := []struct {
		name       string
		remoteAddr string
		expected   string
	}{
		{"trusted IPv4 peer", "192.168.1.7:51234", "yes"},
		{"trusted IPv6 peer", "[2001:db8::1]:51234", "yes"},
		{"untrusted IPv4 peer", "203.0.113.9:51234", "no"},
		{"untrusted IPv6 peer", "[2001:db9::1]:51234", "no"},
		{"garbage peer address", "not-an-address", "no"},
		{"peer without port", "192.168.1.7", "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}

			if got := seen.Get(XIsTrusted); got != tt.expected {
				t.Errorf("%s = %q, want %q", XIsTrusted, got, tt.expected)
			}
		})
	}
}

func TestGuard_stripsForwardingHeadersFromUntrustedPeer(t *testing.T) {
	var seen http.Header

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})

	config := CreateConfig()
	config.TrustLocal = false
	config.TrustedCIDRs = []string{"192.168.1.0/24"}

	handler := newGuardHandler(t, config, next)

	newSpoofedRequest := func(remoteAddr string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set(XRealIP, "1.2.3.4")
		req.Header.Set(XForwardedFor, "1.2.3.4, 5.6.7.8")
		req.Header.Set(CfConnectingIP, "1.2.3.4")

		return req
	}

	t.Run("untrusted peer loses headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newSpoofedRequest("203.0.113.9:1234"))

		for _, header := range forwardingHeaders {
			if got := seen.Get(header); got != "" {
				t.Errorf("%s = %q, want empty", header, got)
			}
		}
	})

	t.Run("trusted peer keeps headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newSpoofedRequest("192.168.1.7:1234"))

		for _, header := range forwardingHeaders {
			if got := seen.Get(header); got == "" {
				t.Errorf("%s was stripped for a trusted peer", header)
			}
		}
	})
}

func TestGuard_rejectUntrusted(t *testing.T) {
	nextCalled := false

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})

	config := CreateConfig()
	config.TrustLocal = false
	config.TrustedCIDRs = []string{"192.168.1.0/24"}
	config.RejectUntrusted = true

	handler := newGuardHandler(t, config, next)

	t.Run("untrusted peer is rejected", func(t *testing.T) {
		nextCalled = false

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:1234"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
		}

		if nextCalled {
			t.Error("next handler was called for a rejected peer")
		}
	})

	t.Run("trusted peer passes", func(t *testing.T) {
		nextCalled = false

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.7:1234"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		if !nextCalled {
			t.Error("next handler was not called for a trusted peer")
		}
	})
}

func TestGuard_recoversPanicFromNext(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	config := CreateConfig()
	config.TrustLocal = false

	handler := newGuardHandler(t, config, next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestCreateConfig_defaults(t *testing.T) {
	config := CreateConfig()

	if !config.TrustLocal {
		t.Error("expected TrustLocal to default to true")
	}

	if config.TrustCloudflare || config.TrustEdgeOne {
		t.Error("expected remote providers to default to off")
	}

	if config.RejectUntrusted {
		t.Error("expected RejectUntrusted to default to false")
	}

	if config.LogLevel != LogLevelInfo {
		t.Errorf("LogLevel = %q, want %q", config.LogLevel, LogLevelInfo)
	}

	if config.TrustedCIDRs == nil || len(config.TrustedCIDRs) != 0 {
		t.Errorf("TrustedCIDRs = %v, want empty non-nil slice", config.TrustedCIDRs)
	}
}
