package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientAddr(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1"})
	if err != nil {
		t.Fatalf("NewTrustedProxies: %v", err)
	}

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		trusted *TrustedProxies
		want    string
	}{
		{"direct peer", "203.0.113.7:51234", nil, trusted, "203.0.113.7"},
		{"untrusted peer ignores headers", "203.0.113.7:51234",
			map[string]string{"X-Forwarded-For": "198.51.100.1"}, trusted, "203.0.113.7"},
		{"no trust ignores headers", "10.1.2.3:80",
			map[string]string{"X-Forwarded-For": "198.51.100.1"}, nil, "10.1.2.3"},
		{"trusted proxy forwards", "10.1.2.3:80",
			map[string]string{"X-Forwarded-For": "198.51.100.1"}, trusted, "198.51.100.1"},
		{"spoofed left entry skipped", "10.1.2.3:80",
			map[string]string{"X-Forwarded-For": "1.1.1.1, 198.51.100.1, 10.9.9.9"}, trusted, "198.51.100.1"},
		{"real ip header", "192.168.1.1:80",
			map[string]string{"X-Real-IP": "198.51.100.2"}, trusted, "198.51.100.2"},
		{"ipv6 peer", "[2001:db8::1]:443", nil, trusted, "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientAddr(r, tt.trusted); got != tt.want {
				t.Errorf("ClientAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	if tp, err := NewTrustedProxies(nil); err != nil || tp != nil {
		t.Errorf("NewTrustedProxies(nil) = %v, %v, want nil, nil", tp, err)
	}
	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Error("NewTrustedProxies should reject a malformed address")
	}
	if _, err := NewTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Error("NewTrustedProxies should reject a malformed CIDR")
	}
}

func TestClientAddressMiddleware(t *testing.T) {
	var got string
	handler := ClientAddress(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientAddrFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:1234"
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if got != "203.0.113.9" {
		t.Errorf("ClientAddrFromContext() = %q, want %q", got, "203.0.113.9")
	}
	if addr := ClientAddrFromContext(r.Context()); addr != "" {
		t.Errorf("ClientAddrFromContext(outer) = %q, want empty", addr)
	}
}
