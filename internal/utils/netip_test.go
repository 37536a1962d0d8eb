package utils

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		expected   string
	}{
		{name: "remote addr", remote: "10.0.0.1:5000", expected: "10.0.0.1"},
		{name: "headers ignored without trust", remote: "10.0.0.1:5000", headers: map[string]string{"X-Real-IP": "1.2.3.4"}, expected: "10.0.0.1"},
		{name: "cloudflare first", remote: "127.0.0.1:1", headers: map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"}, trustProxy: true, expected: "1.1.1.1"},
		{name: "left-most forwarded", remote: "127.0.0.1:1", headers: map[string]string{"X-Forwarded-For": " 2.2.2.2 , 3.3.3.3"}, trustProxy: true, expected: "2.2.2.2"},
		{name: "real ip", remote: "127.0.0.1:1", headers: map[string]string{"X-Real-IP": "4.4.4.4"}, trustProxy: true, expected: "4.4.4.4"},
		{name: "trusted but no headers", remote: "[::1]:8080", trustProxy: true, expected: "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.expected {
				t.Errorf("ClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.10 ", "not-an-ip", "", "fd00::/8"})

	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.20.30.40", true},
		{"192.168.1.10", true},
		{"192.168.1.11", false},
		{"::ffff:10.0.0.1", true},
		{"fd00::1", true},
		{"garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := m.Allow(tt.ip); got != tt.expected {
				t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}

	if m.IsEmpty() {
		t.Errorf("IsEmpty() = true, want false")
	}
	if !NewIPMatcher([]string{"nope"}).IsEmpty() {
		t.Errorf("matcher with only invalid entries should be empty")
	}
}
